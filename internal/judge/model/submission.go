package model

// Submission is one grading request. It is not persisted.
type Submission struct {
	UserID    string `json:"user_id"`
	ProblemID string `json:"problem_id"`
	Code      string `json:"code"`
}
