package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fpang/screen-productivity/internal/metrics"
	"github.com/fpang/screen-productivity/internal/stages"
)

type cannedGenerator struct {
	text string
	err  error
}

func (g cannedGenerator) Generate(context.Context, stages.Request) (string, error) {
	return g.text, g.err
}

func (g cannedGenerator) Model() string { return "canned" }

func captureMetrics(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := metrics.SetOutput(&buf)
	t.Cleanup(func() { metrics.SetOutput(prev) })
	return &buf
}

func TestRunStage_EmitsResultAndMetrics(t *testing.T) {
	buf := captureMetrics(t)
	r := stages.NewRunner(cannedGenerator{text: `{"activity_summary": "coding"}`})
	ev := stages.Event{VisualAnalysis: &stages.Result{RawResponse: `{"applications": ["editor"]}`}}

	res, err := runStage(context.Background(), r, stages.ActivityPattern, ev)
	if err != nil {
		t.Fatalf("runStage: %v", err)
	}
	if res.Status != stages.StatusCompleted || res.Stage != stages.ActivityPattern {
		t.Errorf("result = %+v", res)
	}

	var doc map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &doc); err != nil {
		t.Fatalf("metrics line is not JSON: %v (%q)", err, buf.String())
	}
	if doc["Stage"] != "activity_pattern" {
		t.Errorf("Stage dimension = %v", doc["Stage"])
	}
	if _, ok := doc["StageLatencyMs"]; !ok {
		t.Error("missing StageLatencyMs")
	}
	if _, ok := doc["StageErrors"]; ok {
		t.Error("unexpected StageErrors on success")
	}
}

func TestRunStage_GenerationError(t *testing.T) {
	buf := captureMetrics(t)
	r := stages.NewRunner(cannedGenerator{err: errors.New("throttled")})

	_, err := runStage(context.Background(), r, stages.VisualAnalysis, stages.Event{ImageData: "iVBORw0KGgo="})
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(buf.String(), "StageErrors") {
		t.Errorf("metrics = %q, want StageErrors", buf.String())
	}
}
