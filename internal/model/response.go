package model

import "time"

// Verdict is the terminal classification of an entire check request.
type Verdict string

const (
	VerdictCompliant    Verdict = "COMPLIANT"
	VerdictPartial      Verdict = "PARTIAL"
	VerdictNonCompliant Verdict = "NON_COMPLIANT"
	VerdictUnknown      Verdict = "UNKNOWN"
)

// CheckRequest is the body of POST /check.
type CheckRequest struct {
	Input   RawInput     `json:"input"`
	Options CheckOptions `json:"options,omitempty"`
}

// CheckOptions narrows a request to a subset of sources.
type CheckOptions struct {
	Sources []string `json:"sources,omitempty"`
}

// Summary counts checker results by status.
type Summary struct {
	Total         int `json:"total"`
	Passed        int `json:"passed"`
	Failed        int `json:"failed"`
	Warnings      int `json:"warnings"`
	Errors        int `json:"errors"`
	NotApplicable int `json:"notApplicable"`
}

// ResponseMetadata carries per-request bookkeeping.
type ResponseMetadata struct {
	ProcessingTimeMs int64   `json:"processingTimeMs"`
	CacheHitRate     float64 `json:"cacheHitRate"`
	APIVersion       string  `json:"apiVersion"`
}

// CheckResponse is the consolidated answer for one check request.
type CheckResponse struct {
	CheckID   string           `json:"checkId"`
	Input     NormalizedInput  `json:"input"`
	Timestamp time.Time        `json:"timestamp"`
	Verdict   Verdict          `json:"verdict"`
	Score     int              `json:"score"` // 0..100
	Sources   []SourceResult   `json:"sources"`
	Summary   Summary          `json:"summary"`
	Metadata  ResponseMetadata `json:"metadata"`
}
