// Package main provides the Lambda entry point for the inference stages.
//
// One binary serves all three states of the tracking state machine; the
// STAGE_NAME environment variable selects which one a deployment runs:
//   - visual_analysis: describe the screenshot (image + prompt)
//   - activity_pattern: infer the activity from the visual analysis
//   - productivity_assessment: score the activity
//
// INFERENCE_BACKEND selects bedrock (default, Nova via
// InvokeModelWithResponseStream) or gemini (GenerateContentStream with the
// API key from SSM). MODEL_ID overrides the backend's default model.
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/lambdaboot"
	"github.com/fpang/screen-productivity/internal/logging"
	"github.com/fpang/screen-productivity/internal/stages"
)

// Injected at build time with -ldflags "-X main.commitHash=... -X main.buildTime=...".
var (
	commitHash string
	buildTime  string
)

// Set at cold start.
var (
	stage  stages.Stage
	runner *stages.Runner
)

// setup runs once per cold start, before the first invocation.
func setup() {
	initStart := time.Now()
	logging.Init()

	var err error
	stage, err = stages.ParseStage(os.Getenv("STAGE_NAME"))
	if err != nil {
		log.Fatal().Err(err).Msg("STAGE_NAME must name a pipeline stage")
	}

	aws := lambdaboot.InitAWS()
	backend := logging.EnvOrDefault("INFERENCE_BACKEND", "bedrock")
	modelID := os.Getenv("MODEL_ID")

	var gen stages.Generator
	switch backend {
	case "gemini":
		apiKey := lambdaboot.LoadGeminiKey(aws.SSM)
		client, err := stages.NewGeminiClient(context.Background(), apiKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		gen = stages.NewGeminiGenerator(client, modelID)
	case "bedrock":
		gen = stages.NewBedrockGenerator(lambdaboot.InitBedrock(aws.Config), modelID)
	default:
		log.Fatal().Str("backend", backend).Msg("INFERENCE_BACKEND must be bedrock or gemini")
	}
	runner = stages.NewRunner(gen).WithImageFormat(logging.EnvOrDefault("IMAGE_FORMAT", "png"))

	startup := lambdaboot.StartupLog("stage-lambda", initStart).
		Build(commitHash, buildTime).
		Config("stage", string(stage)).
		Config("backend", backend).
		Model(string(stage), gen.Model())
	if backend == "gemini" {
		startup = startup.SSMParam("geminiApiKey", logging.EnvOrDefault("SSM_API_KEY_PARAM", lambdaboot.DefaultGeminiKeyParam))
	}
	startup.Log()
}

func main() {
	setup()
	lambda.Start(handler)
}
