package compliance

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidEnum is returned when a report uses a value outside a closed set.
var ErrInvalidEnum = errors.New("value outside allowed set")

// ComplianceStatus is the top-level verdict of an analysis.
type ComplianceStatus string

const (
	StatusCompliant    ComplianceStatus = "compliant"
	StatusNonCompliant ComplianceStatus = "non_compliant"
	StatusNeedsReview  ComplianceStatus = "needs_review"
)

// ParseComplianceStatus maps s onto a known status.
func ParseComplianceStatus(s string) (ComplianceStatus, error) {
	switch ComplianceStatus(s) {
	case StatusCompliant, StatusNonCompliant, StatusNeedsReview:
		return ComplianceStatus(s), nil
	default:
		return "", fmt.Errorf("%w: compliance status %q", ErrInvalidEnum, s)
	}
}

func (s ComplianceStatus) validate() error {
	_, err := ParseComplianceStatus(string(s))
	return err
}

// UnmarshalJSON rejects unknown statuses.
func (s *ComplianceStatus) UnmarshalJSON(data []byte) error {
	raw, err := unquote(data)
	if err != nil {
		return err
	}
	parsed, err := ParseComplianceStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Severity grades an issue.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ParseSeverity maps s onto a known severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("%w: severity %q", ErrInvalidEnum, s)
	}
}

func (s Severity) validate() error {
	_, err := ParseSeverity(string(s))
	return err
}

// UnmarshalJSON rejects unknown severities.
func (s *Severity) UnmarshalJSON(data []byte) error {
	raw, err := unquote(data)
	if err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// RecommendationType classifies a remediation.
type RecommendationType string

const (
	RecommendFix         RecommendationType = "fix"
	RecommendChange      RecommendationType = "change"
	RecommendAlternative RecommendationType = "alternative"
)

// ParseRecommendationType maps s onto a known recommendation type.
func ParseRecommendationType(s string) (RecommendationType, error) {
	switch RecommendationType(s) {
	case RecommendFix, RecommendChange, RecommendAlternative:
		return RecommendationType(s), nil
	default:
		return "", fmt.Errorf("%w: recommendation type %q", ErrInvalidEnum, s)
	}
}

func (t RecommendationType) validate() error {
	_, err := ParseRecommendationType(string(t))
	return err
}

// UnmarshalJSON rejects unknown recommendation types.
func (t *RecommendationType) UnmarshalJSON(data []byte) error {
	raw, err := unquote(data)
	if err != nil {
		return err
	}
	parsed, err := ParseRecommendationType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func unquote(data []byte) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("%w: expected string, got %s", ErrInvalidEnum, string(data))
	}
	return s, nil
}
