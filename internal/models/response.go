package models

// DescribeResponse is the success body of /describe.
type DescribeResponse struct {
	Description string `json:"description"`
}

// SummaryResponse is the success body of /summarize.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// ErrorResponse is the failure body of every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}
