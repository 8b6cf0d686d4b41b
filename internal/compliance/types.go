// Package compliance defines the ad metadata, media references, and the
// structured compliance report returned by the Bedrock analysis.
//
// The report's status, severity, and recommendation type fields are closed
// enumerations. Decoding a model response that uses any value outside the
// documented set fails, so an unexpected verdict is never passed through
// uninterpreted.
package compliance

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultPlatform is used when AdDetails carries no platform.
const DefaultPlatform = "facebook"

// AdDetails is the free-form metadata describing one advertisement
// (name, description, category, targeting, message, platform).
type AdDetails map[string]any

// Platform returns the ad's target platform, or DefaultPlatform when the
// platform key is absent or empty.
func (d AdDetails) Platform() string {
	if v, ok := d["platform"]; ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return DefaultPlatform
}

// Name returns the ad name, if present.
func (d AdDetails) Name() string {
	s, _ := d["name"].(string)
	return s
}

// String renders the literal representation embedded in analysis prompts.
// Keys are emitted in sorted order so identical details render identically.
func (d AdDetails) String() string {
	if d == nil {
		return "{}"
	}
	b, err := json.Marshal(map[string]any(d))
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(d))
	}
	return string(b)
}

// MediaRefs is an ordered list of media references. Each entry is either a
// storage locator (s3://bucket/key) or an inline base64 payload, optionally
// carrying a data-URI header.
type MediaRefs []string

// UnmarshalJSON accepts a single string (a one-element list), an array of
// strings, or null.
func (m *MediaRefs) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*m = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return fmt.Errorf("media reference: %w", err)
		}
		if single == "" {
			*m = nil
			return nil
		}
		*m = MediaRefs{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("media references: %w", err)
	}
	*m = list
	return nil
}

// AnalysisResult is the compliance report produced by the model.
type AnalysisResult struct {
	AdDetails     AdSummary     `json:"ad_details"`
	Analysis      Analysis      `json:"analysis"`
	Compliance    Compliance    `json:"compliance"`
	OverallStatus OverallStatus `json:"overall_status"`
}

// AdSummary echoes the ad metadata the model analyzed.
type AdSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Targeting   string `json:"targeting"`
	Message     string `json:"message"`
}

// Analysis holds per-modality findings.
type Analysis struct {
	ImageAnalysis Finding `json:"image_analysis"`
	TextAnalysis  Finding `json:"text_analysis"`
}

// Finding is the model's assessment of one modality.
type Finding struct {
	Description string   `json:"description"`
	Concerns    []string `json:"concerns"`
	Compliant   bool     `json:"compliant"`
}

// Compliance is the top-level verdict with its issues and recommendations.
type Compliance struct {
	Status          ComplianceStatus `json:"status"`
	Issues          []Issue          `json:"issues"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Issue is a single policy problem found in the ad.
type Issue struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// Recommendation is a suggested remediation.
type Recommendation struct {
	Type        RecommendationType `json:"type"`
	Description string             `json:"description"`
}

// OverallStatus summarizes approval.
type OverallStatus struct {
	IsApproved       bool     `json:"is_approved"`
	ConfidenceScore  float64  `json:"confidence_score"`
	ReviewNeeded     bool     `json:"review_needed"`
	RejectionReasons []string `json:"rejection_reasons"`
}

// Validate checks that every enumerated field holds a known value. Fields the
// model omitted entirely decode to their zero value and are rejected here.
func (r *AnalysisResult) Validate() error {
	if err := r.Compliance.Status.validate(); err != nil {
		return fmt.Errorf("compliance.status: %w", err)
	}
	for i, issue := range r.Compliance.Issues {
		if err := issue.Severity.validate(); err != nil {
			return fmt.Errorf("compliance.issues[%d].severity: %w", i, err)
		}
	}
	for i, rec := range r.Compliance.Recommendations {
		if err := rec.Type.validate(); err != nil {
			return fmt.Errorf("compliance.recommendations[%d].type: %w", i, err)
		}
	}
	return nil
}
