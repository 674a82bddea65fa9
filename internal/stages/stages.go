// Package stages implements the three inference stages chained by the
// analysis workflow: visual analysis of the screenshot, activity pattern
// synthesis from the visual description, and a scored productivity
// assessment. Each stage renders its prompt, calls a Generator, and
// returns a Result whose raw_response field the client later feeds to the
// structured extractor.
package stages

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/assets"
	"github.com/fpang/screen-productivity/internal/failure"
	"github.com/fpang/screen-productivity/internal/jsonutil"
)

// Stage names one inference stage. The value is also the key under which the
// workflow stores the stage's Result in its output document.
type Stage string

const (
	VisualAnalysis         Stage = "visual_analysis"
	ActivityPattern        Stage = "activity_pattern"
	ProductivityAssessment Stage = "productivity_assessment"
)

// All lists the stages in workflow order.
var All = []Stage{VisualAnalysis, ActivityPattern, ProductivityAssessment}

// ParseStage resolves a stage name (as set in STAGE_NAME).
func ParseStage(name string) (Stage, error) {
	for _, s := range All {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q (want one of %v)", name, All)
}

// Result statuses.
const (
	StatusCompleted = "completed"
	// StatusUnstructured marks a completed generation whose text holds no
	// extractable JSON object. The raw text is still returned.
	StatusUnstructured = "unstructured"
)

// Params are the sampling parameters of one stage.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
	// TopK of zero means unset.
	TopK int
}

// Definition describes how a stage talks to the model.
type Definition struct {
	Stage  Stage
	System string
	Params Params
}

// Definitions holds the per-stage system text and sampling parameters.
// The visual stage runs cold and short; the later stages are free-form.
var Definitions = map[Stage]Definition{
	VisualAnalysis: {
		Stage:  VisualAnalysis,
		System: assets.VisualSystemPrompt,
		Params: Params{MaxTokens: 300, Temperature: 0.3, TopP: 0.1, TopK: 20},
	},
	ActivityPattern: {
		Stage:  ActivityPattern,
		System: assets.ActivitySystemPrompt,
		Params: Params{MaxTokens: 4096, Temperature: 0.7, TopP: 0.8},
	},
	ProductivityAssessment: {
		Stage:  ProductivityAssessment,
		System: assets.AssessmentSystemPrompt,
		Params: Params{MaxTokens: 4096, Temperature: 0.7, TopP: 0.8},
	},
}

// Request is one generation call.
type Request struct {
	Stage  Stage
	System string
	Prompt string
	// ImageBase64 is the screenshot (visual stage only).
	ImageBase64 string
	// ImageFormat is the image format tag ("png" or "jpeg").
	ImageFormat string
	Params      Params
}

// Generator produces the complete text answer for a Request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Model identifies the backing model for logs and results.
	Model() string
}

// Event is the state document a stage Lambda receives from the workflow.
// The first stage sees the submitted job input; later stages see the
// results of the stages before them.
type Event struct {
	// Input is the envelope form: a JSON string holding {"image_data": ...}.
	Input string `json:"input,omitempty"`
	// ImageData is the unwrapped form of the same payload.
	ImageData string `json:"image_data,omitempty"`

	VisualAnalysis  *Result `json:"visual_analysis,omitempty"`
	ActivityPattern *Result `json:"activity_pattern,omitempty"`
}

// Image returns the base64 screenshot carried by the event.
func (e Event) Image() (string, error) {
	if e.ImageData != "" {
		return e.ImageData, nil
	}
	if e.Input == "" {
		return "", failure.Input(string(VisualAnalysis), "no image data provided", nil)
	}
	var in struct {
		ImageData string `json:"image_data"`
	}
	if err := json.Unmarshal([]byte(e.Input), &in); err != nil {
		return "", failure.Input(string(VisualAnalysis), "input is not valid JSON", err)
	}
	if in.ImageData == "" {
		return "", failure.Input(string(VisualAnalysis), "no image data provided", nil)
	}
	return in.ImageData, nil
}

// Result is the output document of one stage.
type Result struct {
	Stage     Stage  `json:"stage"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Model     string `json:"model,omitempty"`
	// RawResponse is the assembled model text. The client prefers it over
	// Output when reconstructing the report, so it is written even when
	// empty.
	RawResponse string `json:"raw_response"`
	// Output is a message-shaped document: {"message":{"content":[{"text":...}]}}.
	Output map[string]any `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Text returns the stage's answer text: RawResponse, or the message text of
// Output when no raw response was recorded.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	if r.RawResponse != "" {
		return r.RawResponse
	}
	return MessageText(r.Output)
}

// MessageText reads message.content[0].text from a message-shaped output
// document. Any missing or mistyped level yields "".
func MessageText(output map[string]any) string {
	msg, ok := output["message"].(map[string]any)
	if !ok {
		return ""
	}
	content, ok := msg["content"].([]any)
	if !ok || len(content) == 0 {
		return ""
	}
	block, ok := content[0].(map[string]any)
	if !ok {
		return ""
	}
	text, _ := block["text"].(string)
	return text
}

// messageOutput wraps text in the message shape read by MessageText.
func messageOutput(text string) map[string]any {
	return map[string]any{
		"message": map[string]any{
			"role":    "assistant",
			"content": []any{map[string]any{"text": text}},
		},
	}
}

// Runner executes stages against a Generator.
type Runner struct {
	gen         Generator
	imageFormat string
	now         func() time.Time
}

// NewRunner creates a Runner. The screenshot's format tag is sniffed from
// its signature; PNG is assumed when the signature is unknown.
func NewRunner(gen Generator) *Runner {
	return &Runner{gen: gen, imageFormat: "png", now: time.Now}
}

// WithImageFormat sets the format tag used when sniffing fails.
func (r *Runner) WithImageFormat(format string) *Runner {
	r.imageFormat = format
	return r
}

// Model returns the generator's model identifier.
func (r *Runner) Model() string { return r.gen.Model() }

// BuildRequest renders the stage's prompt from the event.
func (r *Runner) BuildRequest(stage Stage, ev Event) (Request, error) {
	def, ok := Definitions[stage]
	if !ok {
		return Request{}, failure.Input(string(stage), "unknown stage", nil)
	}
	req := Request{Stage: stage, System: def.System, Params: def.Params}

	switch stage {
	case VisualAnalysis:
		img, err := ev.Image()
		if err != nil {
			return Request{}, err
		}
		req.ImageBase64 = img
		req.ImageFormat = sniffFormat(img, r.imageFormat)
		req.Prompt = assets.VisualAnalysisPrompt

	case ActivityPattern:
		if ev.VisualAnalysis == nil {
			return Request{}, failure.Input(string(stage), "event has no visual_analysis result", nil)
		}
		req.Prompt = assets.RenderActivityPatternPrompt(ev.VisualAnalysis.Text())

	case ProductivityAssessment:
		if ev.ActivityPattern == nil {
			return Request{}, failure.Input(string(stage), "event has no activity_pattern result", nil)
		}
		req.Prompt = assets.RenderProductivityAssessmentPrompt(activityContext(ev.ActivityPattern))
	}
	return req, nil
}

// sniffFormat reads the image signature from the first base64 quantum.
// Unknown signatures keep the fallback.
func sniffFormat(b64, fallback string) string {
	if len(b64) < 8 {
		return fallback
	}
	head, err := base64.StdEncoding.DecodeString(b64[:8])
	if err != nil {
		return fallback
	}
	switch {
	case bytes.HasPrefix(head, []byte("\x89PNG")):
		return "png"
	case bytes.HasPrefix(head, []byte("\xff\xd8\xff")):
		return "jpeg"
	default:
		return fallback
	}
}

// activityContext serializes the activity record for the assessment prompt,
// falling back to the raw activity text when no record can be extracted.
func activityContext(r *Result) string {
	text := r.Text()
	rec := jsonutil.Extract(text)
	if len(rec) == 0 {
		return text
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return text
	}
	return string(data)
}

// Run executes one stage and returns its Result. Generation failures are
// returned as errors so the workflow marks the execution failed.
func (r *Runner) Run(ctx context.Context, stage Stage, ev Event) (*Result, error) {
	req, err := r.BuildRequest(stage, ev)
	if err != nil {
		return nil, err
	}

	start := r.now()
	log.Debug().
		Str("stage", string(stage)).
		Str("model", r.gen.Model()).
		Int("prompt_length", len(req.Prompt)).
		Bool("has_image", req.ImageBase64 != "").
		Msg("Starting stage generation")

	text, err := r.gen.Generate(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("stage", string(stage)).Msg("Stage generation failed")
		return nil, fmt.Errorf("generate %s: %w", stage, failure.WithStage(err, string(stage)))
	}

	res := &Result{
		Stage:       stage,
		Status:      StatusCompleted,
		Timestamp:   r.now().UTC().Format(time.RFC3339),
		Model:       r.gen.Model(),
		RawResponse: text,
		Output:      messageOutput(text),
	}
	if len(jsonutil.Extract(text)) == 0 {
		res.Status = StatusUnstructured
		res.Error = "Failed to parse response as JSON"
	}

	log.Info().
		Str("stage", string(stage)).
		Str("status", res.Status).
		Int("response_length", len(text)).
		Dur("duration", r.now().Sub(start)).
		Msg("Stage complete")

	return res, nil
}
