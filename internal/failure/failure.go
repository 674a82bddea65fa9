// Package failure defines the error taxonomy shared by the screenshot
// pipeline components. Each component boundary returns a *Error whose Kind
// tells the caller whether the failure was local (bad input, oversized
// payload) or remote (transport, workflow, stream), so retryable transport
// failures can be told apart from permanent input errors.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes pipeline failures.
type Kind int

const (
	// KindInput indicates a missing or invalid image or payload.
	KindInput Kind = iota
	// KindSizeLimit indicates a payload that cannot be brought under the size ceiling.
	KindSizeLimit
	// KindTransport indicates a network or HTTP failure.
	KindTransport
	// KindRemoteJob indicates the workflow reported FAILED, ABORTED or TIMED_OUT.
	KindRemoteJob
	// KindStreamDecode indicates a malformed event in a generation stream.
	KindStreamDecode
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindSizeLimit:
		return "size_limit_exceeded"
	case KindTransport:
		return "transport"
	case KindRemoteJob:
		return "remote_job_failure"
	case KindStreamDecode:
		return "stream_decode"
	default:
		return "unknown"
	}
}

// Error carries enough context to reconstruct the root cause of a failure
// without re-running the pipeline: which stage failed and, for size
// failures, what was measured against which limit.
type Error struct {
	Kind   Kind
	Stage  string
	Size   int
	Limit  int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Stage != "" {
		sb.WriteString(" [" + e.Stage + "]")
	}
	if e.Detail != "" {
		sb.WriteString(": " + e.Detail)
	}
	if e.Kind == KindSizeLimit {
		sb.WriteString(fmt.Sprintf(" (%d bytes, limit %d)", e.Size, e.Limit))
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Input returns a KindInput error for the given stage.
func Input(stage, detail string, err error) *Error {
	return &Error{Kind: KindInput, Stage: stage, Detail: detail, Err: err}
}

// SizeLimit returns a KindSizeLimit error recording the measured size.
func SizeLimit(stage string, size, limit int) *Error {
	return &Error{Kind: KindSizeLimit, Stage: stage, Size: size, Limit: limit, Detail: "payload exceeds size ceiling"}
}

// Transport returns a KindTransport error.
func Transport(stage, detail string, err error) *Error {
	return &Error{Kind: KindTransport, Stage: stage, Detail: detail, Err: err}
}

// RemoteJob returns a KindRemoteJob error carrying the remote-reported detail.
func RemoteJob(stage, detail string) *Error {
	return &Error{Kind: KindRemoteJob, Stage: stage, Detail: detail}
}

// StreamDecode returns a KindStreamDecode error.
func StreamDecode(stage, detail string, err error) *Error {
	return &Error{Kind: KindStreamDecode, Stage: stage, Detail: detail, Err: err}
}

// IsKind reports whether err (or anything it wraps) is a *Error of kind k.
func IsKind(err error, k Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == k
	}
	return false
}

// WithStage returns err with its stage set when err is a *Error without one.
// Other errors are returned unchanged.
func WithStage(err error, stage string) error {
	var fe *Error
	if errors.As(err, &fe) && fe.Stage == "" {
		cp := *fe
		cp.Stage = stage
		return &cp
	}
	return err
}
