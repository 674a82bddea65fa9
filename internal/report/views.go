package report

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/fpang/screen-productivity/internal/jsonutil"
	"github.com/fpang/screen-productivity/internal/stages"
)

// Value is a scalar the model may emit as a string, number or boolean. It
// always renders as text.
type Value string

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Value(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*v = Value(n.String())
		return nil
	}
	// Booleans and nested values keep their JSON text.
	*v = Value(data)
	return nil
}

// Float parses v as a number.
func (v Value) Float() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(string(v)), "%"), 64)
	return f, err == nil
}

// Items is a list the model may emit as a single string, a list of
// strings, or a list of objects. Objects render as their compact JSON.
type Items []string

func (it *Items) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*it = nil
		return nil
	}
	if len(data) > 0 && data[0] != '[' {
		var v Value
		if err := v.UnmarshalJSON(data); err != nil {
			return err
		}
		if v == "" {
			*it = nil
		} else {
			*it = Items{string(v)}
		}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Items, 0, len(raw))
	for _, r := range raw {
		var v Value
		if err := v.UnmarshalJSON(r); err != nil {
			return err
		}
		if v != "" {
			out = append(out, string(v))
		}
	}
	*it = out
	return nil
}

// VisualAnalysis is the display view of the visual analysis record.
type VisualAnalysis struct {
	Applications Items `json:"applications"`
	UIElements   Items `json:"ui_elements"`
	Timestamp    Value `json:"timestamp"`
	WorkType     Value `json:"work_type"`
	Interactions Items `json:"interactions"`
	// Narrative is the free text of a message-shaped record, shown when
	// the model answered in prose.
	Narrative string `json:"-"`
}

// ActivityPattern is the display view of the activity pattern record.
type ActivityPattern struct {
	ActivitySummary        Value                  `json:"activity_summary"`
	Timeline               Items                  `json:"timeline"`
	ProductivityIndicators ProductivityIndicators `json:"productivity_indicators"`
}

type ProductivityIndicators struct {
	FocusTime        Value `json:"focus_time"`
	ContextSwitching Value `json:"context_switching"`
	ActiveWorkRatio  Value `json:"active_work_ratio"`
}

// Assessment is the display view of the productivity assessment record.
type Assessment struct {
	ProductivityScore   ProductivityScore   `json:"productivity_score"`
	Recommendations     []Recommendation    `json:"recommendations"`
	ProductivityMetrics ProductivityMetrics `json:"productivity_metrics"`
}

type ProductivityScore struct {
	Overall   Value          `json:"overall"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

type ScoreBreakdown struct {
	Focus          Value `json:"focus"`
	Efficiency     Value `json:"efficiency"`
	TaskCompletion Value `json:"task_completion"`
}

type Recommendation struct {
	Category       Value `json:"category"`
	Suggestion     Value `json:"suggestion"`
	ExpectedImpact Value `json:"expected_impact"`
}

type ProductivityMetrics struct {
	FocusTimeRatio    Value `json:"focus_time_ratio"`
	TaskSwitchingCost Value `json:"task_switching_cost"`
	ProductiveHours   Value `json:"productive_hours"`
}

// DecodeVisual decodes the visual record. A record that does not match the
// view yields a zero view with any message text preserved.
func DecodeVisual(rec jsonutil.Record) VisualAnalysis {
	v, err := jsonutil.Decode[VisualAnalysis](rec)
	if err != nil {
		v = VisualAnalysis{}
	}
	v.Narrative = stages.MessageText(rec)
	return v
}

// DecodeActivity decodes the activity record; mismatches yield a zero view.
func DecodeActivity(rec jsonutil.Record) ActivityPattern {
	v, err := jsonutil.Decode[ActivityPattern](rec)
	if err != nil {
		return ActivityPattern{}
	}
	return v
}

// DecodeAssessment decodes the assessment record; mismatches yield a zero view.
func DecodeAssessment(rec jsonutil.Record) Assessment {
	v, err := jsonutil.Decode[Assessment](rec)
	if err != nil {
		return Assessment{}
	}
	return v
}

// UnmarshalJSON accepts a bare string as a suggestion without category.
func (r *Recommendation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Recommendation{Suggestion: Value(s)}
		return nil
	}
	type plain Recommendation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Recommendation(p)
	return nil
}
