package report

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fpang/screen-productivity/internal/jsonutil"
	"github.com/fpang/screen-productivity/internal/stages"
)

func decodeOutput(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return m
}

func TestReconstruct_RawResponseScenario(t *testing.T) {
	output := map[string]any{
		"visual_analysis":         map[string]any{"raw_response": "```json\n{\"applications\":[\"IDE\"]}\n```"},
		"activity_pattern":        map[string]any{"output": map[string]any{"activity_summary": "coding"}},
		"productivity_assessment": map[string]any{},
	}

	got := Reconstruct(output)

	if !reflect.DeepEqual(got.VisualAnalysis, jsonutil.Record{"applications": []any{"IDE"}}) {
		t.Errorf("VisualAnalysis = %v", got.VisualAnalysis)
	}
	if !reflect.DeepEqual(got.ActivityPattern, jsonutil.Record{"activity_summary": "coding"}) {
		t.Errorf("ActivityPattern = %v", got.ActivityPattern)
	}
	if got.ProductivityAssessment == nil || len(got.ProductivityAssessment) != 0 {
		t.Errorf("ProductivityAssessment = %v, want empty record", got.ProductivityAssessment)
	}
}

func TestReconstruct_PrefersRawResponse(t *testing.T) {
	output := decodeOutput(t, `{
		"visual_analysis": {
			"raw_response": "{\"work_type\": \"writing\"}",
			"output": {"work_type": "ignored"}
		}
	}`)
	got := Reconstruct(output)
	if got.VisualAnalysis["work_type"] != "writing" {
		t.Errorf("work_type = %v, want writing", got.VisualAnalysis["work_type"])
	}
}

func TestReconstruct_EmptyModelTextIsNoData(t *testing.T) {
	res := stages.Result{
		Stage:  stages.VisualAnalysis,
		Status: stages.StatusUnstructured,
		Output: map[string]any{"message": map[string]any{"content": []any{map[string]any{"text": ""}}}},
	}
	data, err := json.Marshal(map[string]any{"visual_analysis": res})
	if err != nil {
		t.Fatal(err)
	}

	got := Reconstruct(decodeOutput(t, string(data)))
	if len(got.VisualAnalysis) != 0 {
		t.Errorf("VisualAnalysis = %v, want empty record", got.VisualAnalysis)
	}
}

func TestReconstruct_MissingAndMalformed(t *testing.T) {
	tests := []struct {
		name   string
		output map[string]any
	}{
		{name: "nil output", output: nil},
		{name: "stage not an object", output: map[string]any{"visual_analysis": "text"}},
		{name: "raw response without json", output: map[string]any{"visual_analysis": map[string]any{"raw_response": "no json here"}}},
		{name: "output not an object", output: map[string]any{"visual_analysis": map[string]any{"output": []any{1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconstruct(tt.output)
			if !got.Empty() {
				t.Errorf("Reconstruct() = %+v, want all empty", got)
			}
			if got.VisualAnalysis == nil {
				t.Error("empty record should be non-nil")
			}
		})
	}
}

func TestValue_Unmarshal(t *testing.T) {
	var v struct {
		A Value `json:"a"`
		B Value `json:"b"`
		C Value `json:"c"`
		D Value `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"a":"72%","b":85,"c":true,"d":null}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.A != "72%" || v.B != "85" || v.C != "true" || v.D != "" {
		t.Errorf("got %+v", v)
	}
	if f, ok := v.A.Float(); !ok || f != 72 {
		t.Errorf("Float(%q) = %v, %v", v.A, f, ok)
	}
}

func TestItems_Unmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want Items
	}{
		{in: `["a","b"]`, want: Items{"a", "b"}},
		{in: `"single"`, want: Items{"single"}},
		{in: `[{"name":"Slack"}, 3]`, want: Items{`{"name":"Slack"}`, "3"}},
		{in: `null`, want: nil},
	}
	for _, tt := range tests {
		var got Items
		if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestDecodeViews(t *testing.T) {
	assessment := DecodeAssessment(jsonutil.Record{
		"productivity_score": map[string]any{
			"overall":   78.0,
			"breakdown": map[string]any{"focus": 80.0, "efficiency": "70", "task_completion": 85.0},
		},
		"recommendations": []any{
			map[string]any{"category": "Focus", "suggestion": "Batch notifications", "expected_impact": "+10% focus"},
			"Close unused tabs",
		},
		"productivity_metrics": map[string]any{"focus_time_ratio": "65%"},
	})
	if assessment.ProductivityScore.Overall != "78" || assessment.ProductivityScore.Breakdown.Efficiency != "70" {
		t.Errorf("score = %+v", assessment.ProductivityScore)
	}
	if len(assessment.Recommendations) != 2 || assessment.Recommendations[1].Suggestion != "Close unused tabs" {
		t.Errorf("recommendations = %+v", assessment.Recommendations)
	}

	visual := DecodeVisual(jsonutil.Record{"message": map[string]any{"content": []any{map[string]any{"text": "A code editor."}}}})
	if visual.Narrative != "A code editor." {
		t.Errorf("Narrative = %q", visual.Narrative)
	}

	if got := DecodeActivity(jsonutil.Record{"activity_summary": "x", "productivity_indicators": "high"}); got.ActivitySummary != "" {
		t.Errorf("mismatched record should decode to zero view, got %+v", got)
	}
}

func samplePipeline() PipelineOutput {
	return PipelineOutput{
		VisualAnalysis: jsonutil.Record{
			"applications": []any{"VS Code", "Chrome"},
			"work_type":    "software development",
		},
		ActivityPattern: jsonutil.Record{
			"activity_summary":        "Debugging a failing test.",
			"productivity_indicators": map[string]any{"focus_time": "high"},
		},
		ProductivityAssessment: jsonutil.Record{
			"productivity_score": map[string]any{"overall": 82.0},
			"recommendations": []any{
				map[string]any{"category": "Tools", "suggestion": "Use a test watcher", "expected_impact": "faster feedback"},
			},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(samplePipeline())
	for _, want := range []string{
		"# Productivity Report",
		"## Visual Analysis",
		"**Work type:** software development",
		"- VS Code",
		"Debugging a failing test.",
		"| high | n/a | n/a |",
		"**Overall score:** 82/100",
		"1. **Tools:** Use a test watcher _(expected impact: faster feedback)_",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestMarkdown_EmptyStages(t *testing.T) {
	md := Markdown(Reconstruct(nil))
	for _, want := range []string{
		"_No visual analysis data available._",
		"_No activity pattern data available._",
		"_No productivity assessment data available._",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestMarkdown_UnknownFieldsRenderRaw(t *testing.T) {
	md := Markdown(PipelineOutput{VisualAnalysis: jsonutil.Record{"screens": 2.0}})
	if !strings.Contains(md, "```json") || !strings.Contains(md, `"screens": 2`) {
		t.Errorf("raw record not rendered:\n%s", md)
	}
}

func sampleReport() *Report {
	captured := time.Date(2026, 3, 4, 9, 15, 0, 0, time.UTC)
	return &Report{
		Timestamp:  time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		CapturedAt: &captured,
		Analysis:   samplePipeline(),
	}
}

func TestReport_MarkdownHeader(t *testing.T) {
	md := sampleReport().Markdown()
	if !strings.HasPrefix(md, "# Productivity Report\n\n_Generated 2026-03-04T10:00:00Z, captured 2026-03-04T09:15:00Z_") {
		t.Errorf("unexpected header:\n%s", md[:min(len(md), 200)])
	}
}

func TestEncode(t *testing.T) {
	r := sampleReport()

	enc, err := Encode(r, "out/report.json")
	if err != nil {
		t.Fatal(err)
	}
	if enc.ContentType != "application/json" || enc.ContentEncoding != "" {
		t.Errorf("json headers = %q %q", enc.ContentType, enc.ContentEncoding)
	}
	var back Report
	if err := json.Unmarshal(enc.Data, &back); err != nil {
		t.Fatalf("json export not decodable: %v", err)
	}
	if back.Analysis.VisualAnalysis["work_type"] != "software development" {
		t.Errorf("analysis lost: %+v", back.Analysis)
	}

	enc, err = Encode(r, "report.md.zst")
	if err != nil {
		t.Fatal(err)
	}
	if enc.ContentEncoding != "zstd" || !strings.HasPrefix(enc.ContentType, "text/markdown") {
		t.Errorf("md.zst headers = %q %q", enc.ContentType, enc.ContentEncoding)
	}
	plain, err := Decompress(enc.Data)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !strings.HasPrefix(string(plain), "# Productivity Report") {
		t.Errorf("decompressed = %.40q", plain)
	}
}

func TestExporter_LocalFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "report.json.zst")

	if err := NewExporter(nil).Export(context.Background(), sampleReport(), target); err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := Decompress(data)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(plain) {
		t.Error("decompressed export is not JSON")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	r := sampleReport()
	for _, name := range []string{"report.json", "archive/report.json.zst"} {
		enc, err := Encode(r, name)
		if err != nil {
			t.Fatalf("Encode(%s): %v", name, err)
		}
		back, err := Parse(enc.Data, name)
		if err != nil {
			t.Fatalf("Parse(%s): %v", name, err)
		}
		if back.Analysis.VisualAnalysis["work_type"] != "software development" {
			t.Errorf("%s: analysis lost: %+v", name, back.Analysis)
		}
	}

	enc, err := Encode(r, "report.md")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(enc.Data, "report.md"); err == nil {
		t.Error("Parse(markdown) returned nil error")
	}
	if _, err := Parse([]byte("not zstd"), "report.json.zst"); err == nil {
		t.Error("Parse(corrupt zst) returned nil error")
	}
}

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestExporter_S3(t *testing.T) {
	f := &fakePutter{}
	if err := NewExporter(f).Export(context.Background(), sampleReport(), "s3://reports/2026/report.md"); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if aws.ToString(f.in.Bucket) != "reports" || aws.ToString(f.in.Key) != "2026/report.md" {
		t.Errorf("location = %s/%s", aws.ToString(f.in.Bucket), aws.ToString(f.in.Key))
	}
	if !strings.Contains(string(f.body), "## Productivity Assessment") {
		t.Error("markdown body not uploaded")
	}
}

func TestExporter_S3Errors(t *testing.T) {
	if err := NewExporter(nil).Export(context.Background(), sampleReport(), "s3://bucket/key.json"); err == nil {
		t.Error("expected error without S3 client")
	}
	if err := NewExporter(&fakePutter{}).Export(context.Background(), sampleReport(), "s3://bucket-only"); err == nil {
		t.Error("expected error for URI without key")
	}
}
