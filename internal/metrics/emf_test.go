package metrics

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// capture redirects flushed documents into a buffer for the test's duration.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() { SetOutput(prev) })
	return &buf
}

func decodeDocs(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var docs []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, line)
		}
		docs = append(docs, doc)
	}
	return docs
}

func noFunctionName(t *testing.T) {
	t.Helper()
	prev := functionName
	functionName = func() string { return "" }
	t.Cleanup(func() { functionName = prev })
}

func TestNew_AutoDimension(t *testing.T) {
	prev := functionName
	functionName = func() string { return "stage-lambda" }
	t.Cleanup(func() { functionName = prev })

	r := New(Namespace)
	if r.namespace != Namespace {
		t.Errorf("expected namespace %s, got %s", Namespace, r.namespace)
	}
	if r.dimensions["FunctionName"] != "stage-lambda" {
		t.Errorf("expected FunctionName dimension stage-lambda, got %s", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	buf := capture(t)
	noFunctionName(t)

	New(Namespace).
		Dimension("Stage", "visual_analysis").
		Metric("StageLatencyMs", 1234.5, UnitMilliseconds).
		Metric("CallCount", 1, UnitCount).
		Property("model", "us.amazon.nova-lite-v1:0").
		Flush()

	docs := decodeDocs(t, buf)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	doc := docs[0]

	awsMap, ok := doc["_aws"].(map[string]any)
	if !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	if _, ok := awsMap["Timestamp"]; !ok {
		t.Error("missing Timestamp in _aws directive")
	}
	cwArr, ok := awsMap["CloudWatchMetrics"].([]any)
	if !ok || len(cwArr) == 0 {
		t.Fatal("CloudWatchMetrics should be a non-empty array")
	}
	cw := cwArr[0].(map[string]any)
	if cw["Namespace"] != Namespace {
		t.Errorf("expected namespace %s, got %v", Namespace, cw["Namespace"])
	}

	if doc["Stage"] != "visual_analysis" {
		t.Errorf("expected Stage=visual_analysis, got %v", doc["Stage"])
	}
	if doc["StageLatencyMs"] != 1234.5 {
		t.Errorf("expected StageLatencyMs=1234.5, got %v", doc["StageLatencyMs"])
	}
	if doc["model"] != "us.amazon.nova-lite-v1:0" {
		t.Errorf("expected model property, got %v", doc["model"])
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Error("EMF document must be a single line")
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	buf := capture(t)
	New("Test").Flush()
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty recorder, got: %s", buf.String())
	}
}

func TestRecorder_Chaining(t *testing.T) {
	noFunctionName(t)
	rec := New("Test").
		Dimension("Op", "test").
		Metric("Duration", 100, UnitMilliseconds).
		Count("Calls").
		Property("id", "xyz")

	if rec.dimensions["Op"] != "test" {
		t.Error("chaining Dimension failed")
	}
	if rec.fields["Duration"] != float64(100) || rec.units["Duration"] != UnitMilliseconds {
		t.Error("chaining Metric failed")
	}
	if rec.fields["Calls"] != float64(1) || rec.units["Calls"] != UnitCount {
		t.Error("chaining Count failed")
	}
	if rec.fields["id"] != "xyz" {
		t.Error("chaining Property failed")
	}
}

func TestRecorder_DocumentSorted(t *testing.T) {
	noFunctionName(t)
	doc := New("Test").
		Dimension("Stage", "s").
		Dimension("Backend", "bedrock").
		Metric("Zeta", 1, UnitNone).
		Metric("Alpha", 2, UnitBytes).
		Property("Alpha", "ignored").
		Document()

	d := doc["_aws"].(directive)
	group := d.CloudWatchMetrics[0]
	if got := group.Dimensions[0]; len(got) != 2 || got[0] != "Backend" || got[1] != "Stage" {
		t.Errorf("dimensions = %v, want sorted", got)
	}
	if group.Metrics[0].Name != "Alpha" || group.Metrics[1].Name != "Zeta" {
		t.Errorf("metrics = %v, want sorted", group.Metrics)
	}
	if doc["Alpha"] != float64(2) {
		t.Errorf("property overwrote metric value: %v", doc["Alpha"])
	}
}

func TestRecordStage(t *testing.T) {
	buf := capture(t)
	noFunctionName(t)

	RecordStage("activity_pattern", "m", "completed", 1500*time.Millisecond, 420, nil)
	RecordStage("activity_pattern", "m", "unstructured", time.Second, 10, nil)
	RecordStage("activity_pattern", "m", "", time.Second, 0, errors.New("throttled"))

	docs := decodeDocs(t, buf)
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	if docs[0]["StageLatencyMs"] != float64(1500) || docs[0]["ResponseChars"] != float64(420) {
		t.Errorf("success doc = %v", docs[0])
	}
	if _, ok := docs[0]["UnstructuredResponses"]; ok {
		t.Error("completed stage should not count as unstructured")
	}
	if docs[1]["UnstructuredResponses"] != float64(1) {
		t.Errorf("unstructured doc = %v", docs[1])
	}
	if docs[2]["StageErrors"] != float64(1) || docs[2]["error"] != "throttled" {
		t.Errorf("error doc = %v", docs[2])
	}
}

func TestRecordSubmission(t *testing.T) {
	tests := []struct {
		status int
		metric string
	}{
		{status: 200, metric: "Submissions"},
		{status: 413, metric: "OversizedSubmissions"},
		{status: 400, metric: "RejectedSubmissions"},
	}
	for _, tt := range tests {
		buf := capture(t)
		RecordSubmission(1000, tt.status)
		docs := decodeDocs(t, buf)
		if len(docs) != 1 || docs[0][tt.metric] != float64(1) {
			t.Errorf("status %d: expected %s=1, got %v", tt.status, tt.metric, docs)
		}
	}
}

func TestRecordStatusQuery(t *testing.T) {
	buf := capture(t)
	RecordStatusQuery("RUNNING", 20*time.Millisecond)
	docs := decodeDocs(t, buf)
	if len(docs) != 1 || docs[0]["state"] != "RUNNING" || docs[0]["Operation"] != "status" {
		t.Errorf("got %v", docs)
	}
}
