package report

import (
	"fmt"
	"strings"
)

// Markdown renders the three stage records as a Markdown document. Stages
// without data render a "no data" note instead of being omitted.
func Markdown(p PipelineOutput) string {
	var sb strings.Builder
	sb.WriteString("# Productivity Report\n\n")
	writeVisual(&sb, p)
	writeActivity(&sb, p)
	writeAssessment(&sb, p)
	return sb.String()
}

func writeVisual(sb *strings.Builder, p PipelineOutput) {
	sb.WriteString("## Visual Analysis\n\n")
	if len(p.VisualAnalysis) == 0 {
		sb.WriteString("_No visual analysis data available._\n\n")
		return
	}
	v := DecodeVisual(p.VisualAnalysis)
	wrote := false
	wrote = field(sb, "Work type", v.WorkType) || wrote
	wrote = field(sb, "Timestamp", v.Timestamp) || wrote
	wrote = list(sb, "Applications", v.Applications) || wrote
	wrote = list(sb, "UI elements", v.UIElements) || wrote
	wrote = list(sb, "Interactions", v.Interactions) || wrote
	if v.Narrative != "" {
		sb.WriteString(v.Narrative + "\n\n")
		wrote = true
	}
	if !wrote {
		raw(sb, p.VisualAnalysis)
	}
}

func writeActivity(sb *strings.Builder, p PipelineOutput) {
	sb.WriteString("## Activity Pattern\n\n")
	if len(p.ActivityPattern) == 0 {
		sb.WriteString("_No activity pattern data available._\n\n")
		return
	}
	a := DecodeActivity(p.ActivityPattern)
	wrote := false
	if a.ActivitySummary != "" {
		sb.WriteString(string(a.ActivitySummary) + "\n\n")
		wrote = true
	}
	wrote = list(sb, "Timeline", a.Timeline) || wrote

	ind := a.ProductivityIndicators
	if ind != (ProductivityIndicators{}) {
		sb.WriteString("### Productivity Indicators\n\n")
		sb.WriteString("| Focus time | Context switching | Active work ratio |\n")
		sb.WriteString("|---|---|---|\n")
		fmt.Fprintf(sb, "| %s | %s | %s |\n\n", cell(ind.FocusTime), cell(ind.ContextSwitching), cell(ind.ActiveWorkRatio))
		wrote = true
	}
	if !wrote {
		raw(sb, p.ActivityPattern)
	}
}

func writeAssessment(sb *strings.Builder, p PipelineOutput) {
	sb.WriteString("## Productivity Assessment\n\n")
	if len(p.ProductivityAssessment) == 0 {
		sb.WriteString("_No productivity assessment data available._\n\n")
		return
	}
	a := DecodeAssessment(p.ProductivityAssessment)
	wrote := false

	score := a.ProductivityScore
	if score.Overall != "" {
		fmt.Fprintf(sb, "**Overall score:** %s/100\n\n", score.Overall)
		wrote = true
	}
	if score.Breakdown != (ScoreBreakdown{}) {
		sb.WriteString("| Focus | Efficiency | Task completion |\n")
		sb.WriteString("|---|---|---|\n")
		fmt.Fprintf(sb, "| %s | %s | %s |\n\n", cell(score.Breakdown.Focus), cell(score.Breakdown.Efficiency), cell(score.Breakdown.TaskCompletion))
		wrote = true
	}

	if len(a.Recommendations) > 0 {
		sb.WriteString("### Recommendations\n\n")
		for i, r := range a.Recommendations {
			fmt.Fprintf(sb, "%d. ", i+1)
			if r.Category != "" {
				fmt.Fprintf(sb, "**%s:** ", r.Category)
			}
			sb.WriteString(string(r.Suggestion))
			if r.ExpectedImpact != "" {
				fmt.Fprintf(sb, " _(expected impact: %s)_", r.ExpectedImpact)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
		wrote = true
	}

	m := a.ProductivityMetrics
	if m != (ProductivityMetrics{}) {
		sb.WriteString("### Metrics\n\n")
		field(sb, "Focus time ratio", m.FocusTimeRatio)
		field(sb, "Task switching cost", m.TaskSwitchingCost)
		field(sb, "Productive hours", m.ProductiveHours)
		wrote = true
	}
	if !wrote {
		raw(sb, p.ProductivityAssessment)
	}
}

func field(sb *strings.Builder, label string, v Value) bool {
	if v == "" {
		return false
	}
	fmt.Fprintf(sb, "**%s:** %s\n\n", label, v)
	return true
}

func list(sb *strings.Builder, label string, items Items) bool {
	if len(items) == 0 {
		return false
	}
	fmt.Fprintf(sb, "**%s**\n\n", label)
	for _, it := range items {
		sb.WriteString("- " + it + "\n")
	}
	sb.WriteString("\n")
	return true
}

func cell(v Value) string {
	if v == "" {
		return "n/a"
	}
	return strings.ReplaceAll(string(v), "|", `\|`)
}

// raw renders a record that matched none of the known fields.
func raw(sb *strings.Builder, rec map[string]any) {
	data, err := marshalIndent(rec)
	if err != nil {
		sb.WriteString("_Unrecognized stage data._\n\n")
		return
	}
	sb.WriteString("```json\n" + string(data) + "\n```\n\n")
}
