package model

import "time"

// Status is the outcome of a single checker execution.
type Status string

const (
	StatusPass          Status = "PASS"
	StatusFail          Status = "FAIL"
	StatusWarning       Status = "WARNING"
	StatusError         Status = "ERROR"
	StatusNotApplicable Status = "NOT_APPLICABLE"
)

// Applicable reports whether the status participates in scoring. ERROR and
// NOT_APPLICABLE results never lower the score.
func (s Status) Applicable() bool {
	return s != StatusError && s != StatusNotApplicable
}

// Severity qualifies a FAIL result. It is populated iff status is FAIL.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityNone     Severity = "NONE"
)

// Weight returns the scoring weight for a FAIL of this severity.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityHigh:
		return 0.75
	case SeverityMedium:
		return 0.5
	case SeverityLow:
		return 0.25
	}
	return 1.0
}

// Category groups checkers by compliance domain.
type Category string

const (
	CategoryEnvironmental Category = "environmental"
	CategorySocial        Category = "social"
	CategoryLegal         Category = "legal"
	CategoryCertification Category = "certification"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryEnvironmental, CategorySocial, CategoryLegal, CategoryCertification:
		return true
	}
	return false
}

// Descriptor is the static metadata of a registered checker.
type Descriptor struct {
	Name                string        `json:"name"`
	Category            Category      `json:"category"`
	Description         string        `json:"description"`
	Priority            int           `json:"priority"` // 0..10, higher runs and sorts first
	SupportedInputTypes []InputType   `json:"supportedInputTypes"`
	CacheTTL            time.Duration `json:"cacheTTLSeconds"`
	Timeout             time.Duration `json:"timeoutMs"`
	Enabled             bool          `json:"enabled"`
}

// Supports reports whether the checker accepts the given input type.
func (d Descriptor) Supports(t InputType) bool {
	for _, s := range d.SupportedInputTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Evidence points at the data behind a checker result.
type Evidence struct {
	DataSource string     `json:"dataSource"`
	URL        string     `json:"url,omitempty"`
	LastUpdate *time.Time `json:"lastUpdate,omitempty"`
	Raw        JSONMap    `json:"raw,omitempty"`
}

// CheckerResult is the outcome of one checker for one normalized input.
type CheckerResult struct {
	Status          Status   `json:"status"`
	Severity        Severity `json:"severity,omitempty"`
	Message         string   `json:"message"`
	Details         JSONMap  `json:"details,omitempty"`
	Evidence        Evidence `json:"evidence"`
	ExecutionTimeMs int64    `json:"executionTimeMs"`
	Cached          bool     `json:"cached"`
}

// SourceResult is a checker result merged with its descriptor metadata, as
// presented in the response envelope.
type SourceResult struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Priority int      `json:"priority"`
	CheckerResult
}
