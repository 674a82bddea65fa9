package stages

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/screen-productivity/internal/failure"
	"github.com/fpang/screen-productivity/internal/stream"
)

// DefaultGeminiModel is used when the Gemini backend has no model override.
const DefaultGeminiModel = "gemini-2.5-flash"

// ContentStreamer is the streaming subset of genai.Models.
type ContentStreamer interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// GeminiGenerator generates text with a Gemini model over the streaming API.
type GeminiGenerator struct {
	models ContentStreamer
	model  string
}

var _ Generator = (*GeminiGenerator)(nil)

// NewGeminiClient creates a Gemini API client for the given key.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// NewGeminiGenerator creates a generator over client.Models. An empty model
// selects DefaultGeminiModel.
func NewGeminiGenerator(client *genai.Client, model string) *GeminiGenerator {
	return newGeminiGenerator(client.Models, model)
}

func newGeminiGenerator(models ContentStreamer, model string) *GeminiGenerator {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGenerator{models: models, model: model}
}

// Model returns the Gemini model name.
func (g *GeminiGenerator) Model() string { return g.model }

// Generate streams the response and assembles its text parts.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	contents, config, err := geminiRequest(req)
	if err != nil {
		return "", err
	}

	text, err := stream.Assemble(g.models.GenerateContentStream(ctx, g.model, contents, config), stream.GeminiDelta)
	if err != nil {
		return "", failure.WithStage(err, string(req.Stage))
	}

	log.Debug().
		Str("stage", string(req.Stage)).
		Str("model", g.model).
		Int("text_length", len(text)).
		Msg("Gemini generation complete")
	return text, nil
}

// geminiRequest maps a Request onto Gemini contents and config. The image is
// sent as inline data ahead of the prompt.
func geminiRequest(req Request) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	var parts []*genai.Part
	if req.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return nil, nil, failure.Input(string(req.Stage), "image data is not valid base64", err)
		}
		format := req.ImageFormat
		if format == "" {
			format = "png"
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: "image/" + format, Data: data},
		})
	}
	parts = append(parts, &genai.Part{Text: req.Prompt})

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.Params.MaxTokens),
		Temperature:     genai.Ptr(float32(req.Params.Temperature)),
		TopP:            genai.Ptr(float32(req.Params.TopP)),
	}
	if req.Params.TopK > 0 {
		config.TopK = genai.Ptr(float32(req.Params.TopK))
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	return []*genai.Content{{Role: "user", Parts: parts}}, config, nil
}
