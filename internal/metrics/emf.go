// Package metrics emits CloudWatch Embedded Metric Format (EMF) documents.
// Each document is one JSON line on the configured writer (stdout in
// Lambda), which CloudWatch Logs turns into metrics without an API call.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// CloudWatch metric units used by this service.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

// DefaultNamespace is the CloudWatch namespace used when none is configured.
const DefaultNamespace = "AdCompliance"

// functionNameEnv names the Lambda function; when set it becomes a dimension.
const functionNameEnv = "AWS_LAMBDA_FUNCTION_NAME"

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

// directive is the _aws metadata block of an EMF document.
type directive struct {
	Timestamp         int64       `json:"Timestamp"`
	CloudWatchMetrics []metricSet `json:"CloudWatchMetrics"`
}

type metricSet struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// Recorder builds one EMF document. It is not safe for concurrent use;
// create one per operation.
type Recorder struct {
	namespace  string
	out        io.Writer
	dimensions map[string]string
	defs       []metricDef
	values     map[string]float64
	properties map[string]any
}

// NewWithWriter creates a Recorder writing to out. Inside Lambda the
// FunctionName dimension is set from the environment.
func NewWithWriter(namespace string, out io.Writer) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	r := &Recorder{
		namespace:  namespace,
		out:        out,
		dimensions: make(map[string]string),
		values:     make(map[string]float64),
		properties: make(map[string]any),
	}
	if fn := os.Getenv(functionNameEnv); fn != "" {
		r.dimensions["FunctionName"] = fn
	}
	return r
}

// Dimension adds a filterable dimension, e.g. Operation=analyze.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a value. Recording the same name again replaces it.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	if _, seen := r.values[name]; seen {
		for i := range r.defs {
			if r.defs[i].Name == name {
				r.defs[i].Unit = unit
			}
		}
	} else {
		r.defs = append(r.defs, metricDef{Name: name, Unit: unit})
	}
	r.values[name] = value
	return r
}

// Count records a count of 1.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Since records the milliseconds elapsed since start.
func (r *Recorder) Since(name string, start time.Time) *Recorder {
	return r.Metric(name, float64(time.Since(start).Milliseconds()), UnitMilliseconds)
}

// Property adds a searchable field that is not a metric.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// Flush writes the document. A Recorder with no metrics writes nothing.
func (r *Recorder) Flush() {
	if len(r.defs) == 0 {
		return
	}

	dimKeys := make([]string, 0, len(r.dimensions))
	for k := range r.dimensions {
		dimKeys = append(dimKeys, k)
	}
	sort.Strings(dimKeys)

	doc := make(map[string]any, 1+len(r.dimensions)+len(r.values)+len(r.properties))
	for k, v := range r.properties {
		doc[k] = v
	}
	for k, v := range r.values {
		doc[k] = v
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	doc["_aws"] = directive{
		Timestamp: time.Now().UnixMilli(),
		CloudWatchMetrics: []metricSet{{
			Namespace:  r.namespace,
			Dimensions: [][]string{dimKeys},
			Metrics:    r.defs,
		}},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emf: marshal metrics: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, string(data))
}
