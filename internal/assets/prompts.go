// Package assets provides the embedded prompt templates sent to Bedrock.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time so a deployed binary always carries the prompt it was tested with.
package assets

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

// OutputSchema is the JSON shape the model is instructed to return. It is
// embedded verbatim in every analysis prompt.
//
//go:embed prompts/output-schema.txt
var OutputSchema string

//go:embed prompts/analysis.txt
var analysisTemplate string

//go:embed prompts/fix.txt
var fixTemplate string

// Pre-parsed templates. template.Must panics on malformed templates,
// catching errors at program startup rather than at call time.
var (
	analysisPromptTmpl = template.Must(template.New("analysis").Parse(analysisTemplate))
	fixPromptTmpl      = template.Must(template.New("fix").Parse(fixTemplate))
)

// AnalysisPromptData holds the dynamic data injected into the analysis prompt.
type AnalysisPromptData struct {
	// AdDetails is the literal ad metadata representation.
	AdDetails string
	// Platform names the platform whose guidelines are included.
	Platform string
	// Guidelines is the platform policy text. Empty when unavailable,
	// in which case the guidelines section is omitted.
	Guidelines   string
	OutputSchema string
}

// FixPromptData holds the dynamic data injected into the fix prompt.
type FixPromptData struct {
	OriginalAnalysis string
	AdContent        string
}

// RenderAnalysisPrompt renders the compliance analysis instruction text.
func RenderAnalysisPrompt(adDetails, platform, guidelines string) string {
	return render(analysisPromptTmpl, AnalysisPromptData{
		AdDetails:    adDetails,
		Platform:     platform,
		Guidelines:   strings.TrimSpace(guidelines),
		OutputSchema: OutputSchema,
	})
}

// RenderFixPrompt renders the revision request for a non-compliant ad.
func RenderFixPrompt(originalAnalysis, adContent string) string {
	return render(fixPromptTmpl, FixPromptData{
		OriginalAnalysis: originalAnalysis,
		AdContent:        adContent,
	})
}

func render(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	// Execution errors are not expected with these templates; whatever
	// rendered is returned.
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}
