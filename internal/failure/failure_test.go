package failure

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "size limit",
			err:      SizeLimit("imageprep", 300000, 262000),
			contains: []string{"size_limit_exceeded", "[imageprep]", "300000 bytes", "limit 262000"},
		},
		{
			name:     "transport with cause",
			err:      Transport("submit", "POST failed", errors.New("connection refused")),
			contains: []string{"transport", "[submit]", "POST failed", "connection refused"},
		},
		{
			name:     "remote job",
			err:      RemoteJob("poll", "States.TaskFailed"),
			contains: []string{"remote_job_failure", "States.TaskFailed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("Error() = %q, missing %q", msg, s)
				}
			}
		})
	}
}

func TestIsKind_Wrapped(t *testing.T) {
	base := StreamDecode("activity_pattern", "event 3", errors.New("bad json"))
	wrapped := fmt.Errorf("stage failed: %w", base)

	if !IsKind(wrapped, KindStreamDecode) {
		t.Error("IsKind(wrapped, KindStreamDecode) = false, want true")
	}
	if IsKind(wrapped, KindTransport) {
		t.Error("IsKind(wrapped, KindTransport) = true, want false")
	}
	if IsKind(errors.New("plain"), KindInput) {
		t.Error("IsKind(plain error) = true, want false")
	}
}

func TestWithStage(t *testing.T) {
	err := WithStage(Input("", "no image", nil), "visual_analysis")
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if fe.Stage != "visual_analysis" {
		t.Errorf("Stage = %q, want visual_analysis", fe.Stage)
	}

	kept := WithStage(Input("submit", "no image", nil), "other")
	if errors.As(kept, &fe); fe.Stage != "submit" {
		t.Errorf("existing stage overwritten: %q", fe.Stage)
	}
}
