package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/failure"
	"github.com/fpang/screen-productivity/internal/stream"
)

// DefaultBedrockModel is the Nova model used by all three stages.
// The stage Lambda overrides it with MODEL_ID.
const DefaultBedrockModel = "us.amazon.nova-lite-v1:0"

// StreamInvoker is the subset of the Bedrock runtime client used for generation.
type StreamInvoker interface {
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

// BedrockGenerator generates text with a Nova model over Bedrock's
// response stream.
type BedrockGenerator struct {
	client  StreamInvoker
	modelID string
}

var _ Generator = (*BedrockGenerator)(nil)

// NewBedrockGenerator creates a generator for the given model ID. An empty
// ID selects DefaultBedrockModel.
func NewBedrockGenerator(client StreamInvoker, modelID string) *BedrockGenerator {
	if modelID == "" {
		modelID = DefaultBedrockModel
	}
	return &BedrockGenerator{client: client, modelID: modelID}
}

// Model returns the Bedrock model ID.
func (g *BedrockGenerator) Model() string { return g.modelID }

// Generate invokes the model and assembles the streamed text deltas.
func (g *BedrockGenerator) Generate(ctx context.Context, req Request) (string, error) {
	body, err := NovaRequestBody(req)
	if err != nil {
		return "", failure.Input(string(req.Stage), "failed to build request body", err)
	}

	out, err := g.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(g.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", failure.Transport(string(req.Stage), "InvokeModelWithResponseStream failed", err)
	}

	text, err := stream.Assemble(stream.BedrockEvents(out.GetStream()), stream.NovaDelta)
	if err != nil {
		return "", failure.WithStage(err, string(req.Stage))
	}

	log.Debug().
		Str("stage", string(req.Stage)).
		Str("model", g.modelID).
		Int("body_bytes", len(body)).
		Int("text_length", len(text)).
		Msg("Bedrock generation complete")
	return text, nil
}

// Nova messages-v1 request shapes.
type novaRequest struct {
	SchemaVersion   string        `json:"schemaVersion"`
	System          []novaText    `json:"system,omitempty"`
	Messages        []novaMessage `json:"messages"`
	InferenceConfig novaInference `json:"inferenceConfig"`
}

type novaText struct {
	Text string `json:"text"`
}

type novaMessage struct {
	Role    string        `json:"role"`
	Content []novaContent `json:"content"`
}

type novaContent struct {
	Text  string     `json:"text,omitempty"`
	Image *novaImage `json:"image,omitempty"`
}

type novaImage struct {
	Format string     `json:"format"`
	Source novaSource `json:"source"`
}

// novaSource carries base64 image bytes.
type novaSource struct {
	Bytes string `json:"bytes"`
}

type novaInference struct {
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"topP"`
	TopK        int     `json:"topK,omitempty"`
}

// NovaRequestBody serializes a Request as a Nova messages-v1 body. The image,
// when present, precedes the prompt text in the user message.
func NovaRequestBody(req Request) ([]byte, error) {
	var content []novaContent
	if req.ImageBase64 != "" {
		format := req.ImageFormat
		if format == "" {
			format = "png"
		}
		content = append(content, novaContent{Image: &novaImage{
			Format: format,
			Source: novaSource{Bytes: req.ImageBase64},
		}})
	}
	content = append(content, novaContent{Text: req.Prompt})

	body := novaRequest{
		SchemaVersion: "messages-v1",
		Messages:      []novaMessage{{Role: "user", Content: content}},
		InferenceConfig: novaInference{
			MaxTokens:   req.Params.MaxTokens,
			Temperature: req.Params.Temperature,
			TopP:        req.Params.TopP,
			TopK:        req.Params.TopK,
		},
	}
	if req.System != "" {
		body.System = []novaText{{Text: req.System}}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal nova request: %w", err)
	}
	return data, nil
}
