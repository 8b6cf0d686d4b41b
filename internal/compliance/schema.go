package compliance

import (
	"fmt"

	"github.com/invopop/jsonschema"
)

// JSONSchema describes ComplianceStatus as a closed string set.
func (ComplianceStatus) JSONSchema() *jsonschema.Schema {
	return enumSchema("Top-level compliance verdict", StatusCompliant, StatusNonCompliant, StatusNeedsReview)
}

// JSONSchema describes Severity as a closed string set.
func (Severity) JSONSchema() *jsonschema.Schema {
	return enumSchema("Issue severity", SeverityHigh, SeverityMedium, SeverityLow)
}

// JSONSchema describes RecommendationType as a closed string set.
func (RecommendationType) JSONSchema() *jsonschema.Schema {
	return enumSchema("Kind of remediation", RecommendFix, RecommendChange, RecommendAlternative)
}

func enumSchema[T ~string](description string, values ...T) *jsonschema.Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = string(v)
	}
	return &jsonschema.Schema{Type: "string", Description: description, Enum: enum}
}

// ReportSchema returns the JSON Schema of an AnalysisResult, the report
// shape the model is asked to produce.
func ReportSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(&AnalysisResult{})
	schema.Title = "Ad compliance report"
	schema.Description = "Structured result of analyzing one ad against platform advertising guidelines"

	data, err := schema.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal report schema: %w", err)
	}
	return data, nil
}
