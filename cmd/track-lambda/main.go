// Package main provides the Lambda entry point for the tracking API.
//
// Routes (API Gateway HTTP API, payload v2):
//   - POST /track — validate the {"input": "..."} envelope and start a
//     state machine execution named track-<uuid>
//   - GET /track/{name}/status — report the execution's status and output
//
// The state machine ARN comes from STATE_MACHINE_ARN or, when unset, the
// SSM parameter named by SSM_STATE_MACHINE_PARAM.
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/fpang/screen-productivity/internal/lambdaboot"
	"github.com/fpang/screen-productivity/internal/logging"
	"github.com/fpang/screen-productivity/internal/track"
	"github.com/fpang/screen-productivity/internal/workflow"
)

// Injected at build time with -ldflags "-X main.commitHash=... -X main.buildTime=...".
var (
	commitHash string
	buildTime  string
)

var trackHandler *track.Handler

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	stateMachineArn := lambdaboot.LoadStateMachineArn(aws.SSM)

	ceiling := workflow.DefaultCeilingBytes
	if v, err := strconv.Atoi(logging.EnvOrDefault("MAX_ENVELOPE_BYTES", "")); err == nil && v > 0 {
		ceiling = v
	}
	metricsEnabled := logging.EnvOrDefault("EMF_METRICS", "true") == "true"

	trackHandler = track.NewHandler(lambdaboot.InitSFN(aws.Config), stateMachineArn, ceiling).
		WithMetrics(metricsEnabled)

	lambdaboot.StartupLog("track-lambda", initStart).
		Build(commitHash, buildTime).
		StateMachine("track", stateMachineArn).
		SSMParam("stateMachineArn", logging.EnvOrDefault("SSM_STATE_MACHINE_PARAM", lambdaboot.DefaultStateMachineParam)).
		Config("maxEnvelopeBytes", strconv.Itoa(ceiling)).
		Feature("emfMetrics", metricsEnabled).
		Log()
}

func main() {
	mux := http.NewServeMux()
	mux.Handle("/track", trackHandler)
	mux.Handle("/track/", trackHandler)

	adapter := httpadapter.NewV2(mux)
	lambda.Start(adapter.ProxyWithContext)
}
