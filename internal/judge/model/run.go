package model

// RunCase is the detailed result of one public test run without grading.
type RunCase struct {
	TestNumber     int     `json:"test_number"`
	Success        bool    `json:"success"`
	Error          string  `json:"error,omitempty"`
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expected_output"`
	ActualOutput   string  `json:"actual_output"`
	ExecutionTime  float64 `json:"execution_time"`
	Passed         bool    `json:"passed"`
}

// RunSummary aggregates a public run.
type RunSummary struct {
	Passed     int     `json:"passed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// RunReport is returned by a public run.
type RunReport struct {
	Results []RunCase  `json:"results"`
	Summary RunSummary `json:"summary"`
}
