package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/metrics"
	"github.com/fpang/screen-productivity/internal/stages"
)

var coldStart = true

// handler runs the configured stage over the workflow state document.
func handler(ctx context.Context, event stages.Event) (*stages.Result, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "stage-lambda").Str("stage", string(stage)).Msg("Cold start — first invocation")
	}
	return runStage(ctx, runner, stage, event)
}

func runStage(ctx context.Context, r *stages.Runner, s stages.Stage, event stages.Event) (*stages.Result, error) {
	log.Info().
		Str("stage", string(s)).
		Bool("hasVisual", event.VisualAnalysis != nil).
		Bool("hasActivity", event.ActivityPattern != nil).
		Msg("Stage Lambda invoked")

	start := time.Now()
	res, err := r.Run(ctx, s, event)
	if err != nil {
		metrics.RecordStage(string(s), r.Model(), "", time.Since(start), 0, err)
		return nil, err
	}
	metrics.RecordStage(string(s), res.Model, res.Status, time.Since(start), len(res.RawResponse), nil)
	return res, nil
}
