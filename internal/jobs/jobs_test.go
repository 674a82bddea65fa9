package jobs

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewExecutionName(t *testing.T) {
	a := NewExecutionName(ExecutionPrefix)
	b := NewExecutionName(ExecutionPrefix)
	if a == b {
		t.Error("names should be unique")
	}
	if !strings.HasPrefix(a, "track-") {
		t.Errorf("name %q lacks prefix", a)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(a, "track-")); err != nil {
		t.Errorf("suffix is not a UUID: %v", err)
	}
	if len(a) > 80 {
		t.Errorf("name %q exceeds 80 characters", a)
	}
}

func TestParseRoute(t *testing.T) {
	tests := []struct {
		path       string
		wantName   string
		wantAction string
		wantOK     bool
	}{
		{path: "/track/track-123/status", wantName: "track-123", wantAction: "status", wantOK: true},
		{path: "/track/123/status", wantName: "track-123", wantAction: "status", wantOK: true},
		{path: "/track/123", wantOK: false},
		{path: "/track//status", wantOK: false},
		{path: "/track/123/status/extra", wantOK: false},
		{path: "/track/123/status/", wantOK: false},
		{path: "/other/123/status", wantOK: false},
	}
	for _, tt := range tests {
		name, action, ok := ParseRoute(tt.path, "/track/", ExecutionPrefix)
		if ok != tt.wantOK || name != tt.wantName || action != tt.wantAction {
			t.Errorf("ParseRoute(%q) = %q, %q, %v; want %q, %q, %v", tt.path, name, action, ok, tt.wantName, tt.wantAction, tt.wantOK)
		}
	}
}

func TestExecutionArn(t *testing.T) {
	got, err := ExecutionArn("arn:aws:states:us-east-1:123456789012:stateMachine:ProductivityPipeline", "track-1")
	if err != nil {
		t.Fatal(err)
	}
	want := "arn:aws:states:us-east-1:123456789012:execution:ProductivityPipeline:track-1"
	if got != want {
		t.Errorf("ExecutionArn = %q, want %q", got, want)
	}
	if _, err := ExecutionArn("arn:aws:lambda:us-east-1:1:function:f", "x"); err == nil {
		t.Error("expected error for non state machine ARN")
	}
}

func TestExecutionName(t *testing.T) {
	if got := ExecutionName("arn:aws:states:us-east-1:1:execution:sm:track-9"); got != "track-9" {
		t.Errorf("ExecutionName = %q", got)
	}
	if got := ExecutionName("track-9"); got != "track-9" {
		t.Errorf("ExecutionName = %q", got)
	}
}
