package model

// AnalysisResult is the full outcome of scoring a user note against a
// reference explanation.
type AnalysisResult struct {
	Accuracy          float64  `json:"accuracy"`
	MissingStatements []string `json:"missing_statements"`
	MissingKeywords   []string `json:"missing_keywords"`
	Roadmap           []string `json:"roadmap"`
	UserText          string   `json:"user_text"`
	ReferenceText     string   `json:"reference_text"`
}
