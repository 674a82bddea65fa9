// Package metrics writes CloudWatch Embedded Metric Format (EMF) documents
// for the pipeline Lambdas. Each document is one JSON line on stdout;
// CloudWatch extracts the metrics from the Lambda log stream, so no API
// calls or credentials are involved.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"
	"time"
)

// Namespace is the CloudWatch namespace for all pipeline metrics.
const Namespace = "ScreenProductivity"

// CloudWatch units used by the pipeline.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

type directive struct {
	Timestamp         int64         `json:"Timestamp"`
	CloudWatchMetrics []metricGroup `json:"CloudWatchMetrics"`
}

type metricGroup struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// Recorder builds one EMF document. Use one Recorder per operation; it is
// not safe for concurrent use.
type Recorder struct {
	namespace  string
	dimensions map[string]string
	units      map[string]string
	fields     map[string]any
}

var (
	functionName = func() string { return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") }

	outputMu sync.Mutex
	output   io.Writer = os.Stdout
	now      = time.Now
)

// SetOutput redirects flushed documents (stdout by default) and returns the
// previous writer.
func SetOutput(w io.Writer) io.Writer {
	outputMu.Lock()
	defer outputMu.Unlock()
	prev := output
	output = w
	return prev
}

// New creates a Recorder in namespace. Inside Lambda the FunctionName
// dimension is added automatically.
func New(namespace string) *Recorder {
	r := &Recorder{
		namespace:  namespace,
		dimensions: map[string]string{},
		units:      map[string]string{},
		fields:     map[string]any{},
	}
	if fn := functionName(); fn != "" {
		r.dimensions["FunctionName"] = fn
	}
	return r
}

// Dimension adds an indexed dimension. Every metric in the document is
// reported under the full dimension set.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records value under name with one of the Unit* constants.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.units[name] = unit
	r.fields[name] = value
	return r
}

// Count records a single occurrence of name.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Property attaches a searchable field that is not a metric.
func (r *Recorder) Property(key string, value any) *Recorder {
	if _, isMetric := r.units[key]; !isMetric {
		r.fields[key] = value
	}
	return r
}

// Document returns the EMF document, or nil when no metric was recorded.
// Dimension and metric lists are sorted so output is stable.
func (r *Recorder) Document() map[string]any {
	if len(r.units) == 0 {
		return nil
	}

	names := slices.Sorted(maps.Keys(r.units))
	defs := make([]metricDef, 0, len(names))
	for _, n := range names {
		defs = append(defs, metricDef{Name: n, Unit: r.units[n]})
	}

	doc := make(map[string]any, len(r.fields)+len(r.dimensions)+1)
	for k, v := range r.fields {
		doc[k] = v
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	doc["_aws"] = directive{
		Timestamp: now().UnixMilli(),
		CloudWatchMetrics: []metricGroup{{
			Namespace:  r.namespace,
			Dimensions: [][]string{slices.Sorted(maps.Keys(r.dimensions))},
			Metrics:    defs,
		}},
	}
	return doc
}

// Flush writes the document as a single line. A Recorder without metrics
// writes nothing. The Recorder must not be reused afterwards.
func (r *Recorder) Flush() {
	doc := r.Document()
	if doc == nil {
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emf: failed to marshal metrics: %v\n", err)
		return
	}

	outputMu.Lock()
	defer outputMu.Unlock()
	output.Write(append(data, '\n'))
}
