// Package pipeline runs one screenshot end to end: preprocess it, submit it
// to the analysis workflow, poll for the outcome, and reconstruct the
// per-stage report from the workflow output.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/failure"
	"github.com/fpang/screen-productivity/internal/imageprep"
	"github.com/fpang/screen-productivity/internal/report"
	"github.com/fpang/screen-productivity/internal/workflow"
)

const decodeStage = "decode"

// Submitter sends a base64 image to the workflow.
type Submitter interface {
	Submit(ctx context.Context, imageBase64 string) (workflow.JobHandle, error)
}

// Poller waits for a submitted job to finish.
type Poller interface {
	Poll(ctx context.Context, handle workflow.JobHandle) workflow.Outcome
}

// Client chains the pipeline components for one analysis at a time. A
// Client holds no per-analysis state, so concurrent Analyze calls are safe.
type Client struct {
	prep      imageprep.Options
	submitter Submitter
	poller    Poller
	now       func() time.Time
}

// NewClient creates a Client.
func NewClient(prep imageprep.Options, submitter Submitter, poller Poller) *Client {
	return &Client{prep: prep, submitter: submitter, poller: poller, now: time.Now}
}

// Analyze runs the full pipeline for one screenshot. Every failure is a
// *failure.Error naming the stage that failed.
func (c *Client) Analyze(ctx context.Context, image []byte) (*report.Report, error) {
	start := c.now()

	prepared, err := imageprep.Prepare(image, c.prep)
	if err != nil {
		return nil, err
	}

	handle, err := c.submitter.Submit(ctx, prepared.Base64)
	if err != nil {
		return nil, err
	}

	outcome := c.poller.Poll(ctx, handle)
	if err := outcome.Err(); err != nil {
		return nil, err
	}

	output, err := DecodeOutput(outcome.Output)
	if err != nil {
		return nil, err
	}

	r := &report.Report{
		Timestamp:    c.now().UTC(),
		ExecutionArn: string(handle),
		Analysis:     report.Reconstruct(output),
	}
	if t, ok := imageprep.CaptureTime(image); ok {
		r.CapturedAt = &t
	}

	log.Info().
		Str("executionArn", string(handle)).
		Strs("prep_steps", prepared.Steps).
		Int("attempts", outcome.Attempts).
		Bool("empty", r.Analysis.Empty()).
		Dur("elapsed", c.now().Sub(start)).
		Msg("Analysis complete")

	return r, nil
}

// DecodeOutput parses the workflow's output document. An empty output is
// treated as an empty document; anything that is not a JSON object is a
// remote job failure.
func DecodeOutput(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(raw), &output); err != nil {
		e := failure.RemoteJob(decodeStage, "invalid JSON in workflow output")
		e.Err = err
		return nil, e
	}
	if output == nil {
		output = map[string]any{}
	}
	return output, nil
}
