// Package report turns the workflow's output document into the three
// per-stage records, renders them for display, and exports the finished
// report.
package report

import (
	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/jsonutil"
	"github.com/fpang/screen-productivity/internal/stages"
)

// PipelineOutput holds one extracted record per stage. A stage that
// produced nothing usable has an empty, non-nil record.
type PipelineOutput struct {
	VisualAnalysis         jsonutil.Record `json:"visual_analysis"`
	ActivityPattern        jsonutil.Record `json:"activity_pattern"`
	ProductivityAssessment jsonutil.Record `json:"productivity_assessment"`
}

// Record returns the record for a stage.
func (p PipelineOutput) Record(stage stages.Stage) jsonutil.Record {
	switch stage {
	case stages.VisualAnalysis:
		return p.VisualAnalysis
	case stages.ActivityPattern:
		return p.ActivityPattern
	case stages.ProductivityAssessment:
		return p.ProductivityAssessment
	default:
		return jsonutil.Record{}
	}
}

// Empty reports whether no stage produced data.
func (p PipelineOutput) Empty() bool {
	return len(p.VisualAnalysis) == 0 && len(p.ActivityPattern) == 0 && len(p.ProductivityAssessment) == 0
}

// Reconstruct builds the per-stage records from the workflow output. For
// each stage a raw_response field is run through the structured extractor;
// otherwise the stage's output mapping is used as is; otherwise the record
// is empty. Reconstruct never fails.
func Reconstruct(output map[string]any) PipelineOutput {
	out := PipelineOutput{
		VisualAnalysis:         stageRecord(output, stages.VisualAnalysis),
		ActivityPattern:        stageRecord(output, stages.ActivityPattern),
		ProductivityAssessment: stageRecord(output, stages.ProductivityAssessment),
	}
	log.Debug().
		Int("visual_keys", len(out.VisualAnalysis)).
		Int("activity_keys", len(out.ActivityPattern)).
		Int("assessment_keys", len(out.ProductivityAssessment)).
		Msg("Pipeline output reconstructed")
	return out
}

func stageRecord(output map[string]any, stage stages.Stage) jsonutil.Record {
	raw, ok := output[string(stage)].(map[string]any)
	if !ok {
		return jsonutil.Record{}
	}
	if rr, ok := raw["raw_response"]; ok {
		return jsonutil.Extract(rr)
	}
	if o, ok := raw["output"].(map[string]any); ok {
		return o
	}
	return jsonutil.Record{}
}
