package model

// TestCase is one (input, expected output) pair.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// Problem holds the test data for one problem. Values are treated as immutable once loaded.
type Problem struct {
	ID          string     `json:"id"`
	PublicTests []TestCase `json:"public_tests"`
	HiddenTests []TestCase `json:"hidden_tests"`
}

// AllTests returns public tests followed by hidden tests.
func (p *Problem) AllTests() []TestCase {
	out := make([]TestCase, 0, len(p.PublicTests)+len(p.HiddenTests))
	out = append(out, p.PublicTests...)
	out = append(out, p.HiddenTests...)
	return out
}

// TotalTests returns the number of public and hidden tests.
func (p *Problem) TotalTests() int {
	return len(p.PublicTests) + len(p.HiddenTests)
}

// ProblemDetails is the public view of a problem: hidden tests are only counted.
type ProblemDetails struct {
	ProblemID        string     `json:"problem_id"`
	PublicTests      []TestCase `json:"public_tests"`
	HiddenTestsCount int        `json:"hidden_tests_count"`
	TotalTests       int        `json:"total_tests"`
}

// Details builds the public view.
func (p *Problem) Details() ProblemDetails {
	public := p.PublicTests
	if public == nil {
		public = []TestCase{}
	}
	return ProblemDetails{
		ProblemID:        p.ID,
		PublicTests:      public,
		HiddenTestsCount: len(p.HiddenTests),
		TotalTests:       p.TotalTests(),
	}
}
