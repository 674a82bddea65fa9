package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/failure"
)

const pollStage = "poll"

// Polling defaults: 30 attempts at 2 s gives a ~60 s client-side deadline.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 30
)

// Remote status markers reported by the workflow service.
const (
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusTimedOut  = "TIMED_OUT"
	StatusAborted   = "ABORTED"
)

// State is a polling session state.
type State int

const (
	StateSubmitted State = iota
	StatePolling
	StateSucceeded
	StateFailed
	StateTimedOut
	StateTransportError
)

func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further polling occurs after s.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}

// Status is one answer of the status query.
type Status struct {
	Status string
	Output string
	Error  string
	Cause  string
}

// StatusSource queries job status by handle.
type StatusSource interface {
	Describe(ctx context.Context, handle JobHandle) (Status, error)
}

// Waiter blocks for d or until ctx is done.
type Waiter func(ctx context.Context, d time.Duration) error

// SleepWaiter waits on a real timer.
func SleepWaiter(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Outcome is the single terminal result of a polling session.
type Outcome struct {
	State State
	// Output is the job output payload (Succeeded only).
	Output string
	// Reason is the remote error detail or the local failure description.
	Reason string
	// RemoteStatus is the last status marker received.
	RemoteStatus string
	// Attempts is the number of status queries made.
	Attempts int
	// Waited is the total interval time spent between ticks.
	Waited time.Duration

	// cause is the local error behind a TransportError outcome, and
	// causeStep names what was in progress when it occurred.
	cause     error
	causeStep string
}

// Err converts a non-success outcome into the pipeline error taxonomy.
func (o Outcome) Err() error {
	switch o.State {
	case StateSucceeded:
		return nil
	case StateTransportError:
		if o.cause != nil {
			return failure.Transport(pollStage, o.causeStep, o.cause)
		}
		return failure.Transport(pollStage, o.Reason, nil)
	case StateFailed, StateTimedOut:
		detail := o.Reason
		if o.RemoteStatus != "" {
			detail = fmt.Sprintf("%s: %s", o.RemoteStatus, o.Reason)
		}
		return failure.RemoteJob(pollStage, detail)
	default:
		return fmt.Errorf("polling ended in non-terminal state %s", o.State)
	}
}

// Poller drives a bounded polling loop against a StatusSource. Each Poller
// call owns its loop state, so independent sessions may run concurrently.
type Poller struct {
	source      StatusSource
	interval    time.Duration
	maxAttempts int
	wait        Waiter
}

// NewPoller creates a Poller. Zero interval or attempts select the defaults.
func NewPoller(source StatusSource, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{
		source:      source,
		interval:    interval,
		maxAttempts: maxAttempts,
		wait:        SleepWaiter,
	}
}

// WithWaiter replaces the waiter (used by tests to avoid real sleeps).
func (p *Poller) WithWaiter(w Waiter) *Poller {
	p.wait = w
	return p
}

// Poll waits one interval, queries the status, and repeats until the job is
// terminal or maxAttempts queries have been made. Exceeding the attempts
// yields StateTimedOut locally, independent of any server-side timeout. A
// query error ends the session immediately with StateTransportError.
func (p *Poller) Poll(ctx context.Context, handle JobHandle) Outcome {
	out := Outcome{State: StateSubmitted}
	start := time.Now()

	for out.Attempts < p.maxAttempts {
		out.State = StatePolling

		if err := p.wait(ctx, p.interval); err != nil {
			out.State = StateTransportError
			out.Reason = fmt.Sprintf("polling interrupted: %v", err)
			out.cause, out.causeStep = err, "polling interrupted"
			break
		}
		out.Waited += p.interval

		st, err := p.source.Describe(ctx, handle)
		out.Attempts++
		if err != nil {
			out.State = StateTransportError
			out.Reason = err.Error()
			out.cause, out.causeStep = err, "status query failed"
			break
		}
		out.RemoteStatus = st.Status

		log.Debug().
			Str("executionArn", string(handle)).
			Str("status", st.Status).
			Int("attempt", out.Attempts).
			Msg("Polled execution status")

		if next, ok := classify(st, &out); ok {
			out.State = next
			break
		}
	}

	if !out.State.Terminal() {
		out.State = StateTimedOut
		out.Reason = fmt.Sprintf("maximum polling attempts reached (%d)", p.maxAttempts)
	}

	evt := log.Info()
	if out.State != StateSucceeded {
		evt = log.Warn()
	}
	evt.Str("executionArn", string(handle)).
		Str("state", out.State.String()).
		Str("remoteStatus", out.RemoteStatus).
		Str("reason", out.Reason).
		Int("attempts", out.Attempts).
		Dur("elapsed", time.Since(start)).
		Msg("Polling session finished")

	return out
}

// classify maps a remote status onto a terminal state, filling out's payload
// fields. ok is false for non-terminal statuses.
func classify(st Status, out *Outcome) (State, bool) {
	switch st.Status {
	case StatusSucceeded:
		out.Output = st.Output
		return StateSucceeded, true
	case StatusFailed, StatusAborted:
		out.Reason = remoteDetail(st)
		return StateFailed, true
	case StatusTimedOut:
		out.Reason = remoteDetail(st)
		return StateTimedOut, true
	default:
		return StatePolling, false
	}
}

func remoteDetail(st Status) string {
	switch {
	case st.Error != "" && st.Cause != "":
		return st.Error + ": " + st.Cause
	case st.Error != "":
		return st.Error
	case st.Cause != "":
		return st.Cause
	default:
		return "Unknown error"
	}
}
