// Package assets provides the embedded prompt templates for the inference
// stages.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time so the stage Lambdas ship as a single binary.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// --- Static prompts (no dynamic data) ---

// VisualSystemPrompt frames the model as a screenshot analyst.
//
//go:embed prompts/visual-system.txt
var VisualSystemPrompt string

// VisualAnalysisPrompt asks for applications, UI elements, timestamps,
// interactions and work type as a JSON object.
//
//go:embed prompts/visual-analysis.txt
var VisualAnalysisPrompt string

//go:embed prompts/activity-system.txt
var ActivitySystemPrompt string

//go:embed prompts/assessment-system.txt
var AssessmentSystemPrompt string

// --- Templated prompts (dynamic data injected at runtime) ---

//go:embed prompts/activity-pattern.txt
var activityPatternTemplate string

//go:embed prompts/productivity-assessment.txt
var productivityAssessmentTemplate string

var (
	activityPromptTmpl   = template.Must(template.New("activity").Parse(activityPatternTemplate))
	assessmentPromptTmpl = template.Must(template.New("assessment").Parse(productivityAssessmentTemplate))
)

// PromptData holds the dynamic data injected into prompt templates.
type PromptData struct {
	// Context is the previous stage's output: the visual analysis text for
	// the activity prompt, the activity record JSON for the assessment prompt.
	Context string
}

// RenderActivityPatternPrompt renders the activity pattern prompt around the
// visual analysis text.
func RenderActivityPatternPrompt(visualText string) string {
	return renderTemplate(activityPromptTmpl, visualText)
}

// RenderProductivityAssessmentPrompt renders the assessment prompt around the
// activity data.
func RenderProductivityAssessmentPrompt(activityData string) string {
	return renderTemplate(assessmentPromptTmpl, activityData)
}

// renderTemplate executes a pre-parsed template with the given context.
func renderTemplate(tmpl *template.Template, context string) string {
	var buf bytes.Buffer
	// Template execution errors are not expected with our simple templates,
	// but we handle them gracefully by returning whatever was rendered.
	_ = tmpl.Execute(&buf, PromptData{Context: context})
	return buf.String()
}
