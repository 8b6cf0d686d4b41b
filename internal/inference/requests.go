package inference

import (
	"encoding/json"
	"strings"

	"github.com/fpang/ad-compliance-analyzer/internal/compliance"
)

// AnalyzeRequest is the input of an interactive analysis as accepted by the
// HTTP API, the CLI, and the MCP server.
type AnalyzeRequest struct {
	AdDetails compliance.AdDetails `json:"ad_details"`
	Images    compliance.MediaRefs `json:"images,omitempty"`
	Video     compliance.MediaRefs `json:"video,omitempty"`
	Audio     compliance.MediaRefs `json:"audio,omitempty"`
}

// FixRequest is the input of a fix call. OriginalAnalysis may be a JSON
// object (a previous report) or a string.
type FixRequest struct {
	OriginalAnalysis json.RawMessage `json:"original_analysis"`
	AdContent        string          `json:"ad_content"`
}

// AnalysisText returns the prior analysis as prompt text: JSON strings are
// unquoted, anything else is used verbatim.
func (r FixRequest) AnalysisText() string {
	var s string
	if err := json.Unmarshal(r.OriginalAnalysis, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(r.OriginalAnalysis))
}

// BatchRequest is the input of a batch job submission. An empty JobName
// lets the caller generate one.
type BatchRequest struct {
	JobName string      `json:"job_name,omitempty"`
	Items   []BatchItem `json:"items"`
}

// FixResponse wraps the model's fix text.
type FixResponse struct {
	Fixed string `json:"fixed"`
}

// BatchSubmitted is returned after a batch job has been created.
type BatchSubmitted struct {
	JobName string `json:"job_name"`
	JobARN  string `json:"job_arn"`
}
