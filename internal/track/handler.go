// Package track implements the submission endpoint in front of the analysis
// workflow.
//
// Submission (POST /track):
//
//	The body is the job envelope {"input": "{\"image_data\": \"...\"}"}.
//	Envelopes over the size ceiling are rejected with 413 before any
//	workflow call. Accepted envelopes start a Step Functions execution
//	named track-<uuid>, and the handler responds 200 with
//	{"executionArn": "..."}.
//
// Status (GET /track/{name}/status):
//
//	Returns the execution's status, output and error detail, so clients
//	without AWS credentials can poll through the same endpoint.
package track

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/jobs"
	"github.com/fpang/screen-productivity/internal/metrics"
	"github.com/fpang/screen-productivity/internal/workflow"
)

const routePrefix = "/track/"

// SFNAPI is the subset of the Step Functions client used by the handler.
type SFNAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
	DescribeExecution(ctx context.Context, params *sfn.DescribeExecutionInput, optFns ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error)
}

// Handler serves job submission and status lookups.
type Handler struct {
	sfn             SFNAPI
	stateMachineArn string
	ceiling         int
	metrics         bool
}

// NewHandler creates a handler that starts executions of stateMachineArn.
// A ceiling of zero selects workflow.DefaultCeilingBytes.
func NewHandler(client SFNAPI, stateMachineArn string, ceiling int) *Handler {
	if ceiling <= 0 {
		ceiling = workflow.DefaultCeilingBytes
	}
	return &Handler{sfn: client, stateMachineArn: stateMachineArn, ceiling: ceiling}
}

// WithMetrics enables EMF metrics for submissions and status lookups.
func (h *Handler) WithMetrics(enabled bool) *Handler {
	h.metrics = enabled
	return h
}

// ServeHTTP dispatches to submission (POST /track) or status (GET /track/{name}/status).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && (r.URL.Path == "/track" || r.URL.Path == routePrefix):
		h.handleSubmit(w, r)
	case r.Method == http.MethodGet:
		name, action, ok := jobs.ParseRoute(r.URL.Path, routePrefix, jobs.ExecutionPrefix)
		if !ok || action != "status" {
			httpError(w, http.StatusNotFound, "not found")
			return
		}
		h.handleStatus(w, r, name)
	default:
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSubmit validates the envelope and starts one execution.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	// Read one byte past the ceiling so oversize bodies are detected
	// without buffering them whole.
	body, err := io.ReadAll(io.LimitReader(r.Body, int64(h.ceiling)+1))
	if err != nil {
		log.Error().Err(err).Msg("Submission: failed to read body")
		h.reject(w, len(body), http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) > h.ceiling {
		log.Warn().Int("limit", h.ceiling).Msg("Submission: envelope exceeds size ceiling")
		h.reject(w, len(body), http.StatusRequestEntityTooLarge, "payload exceeds size limit")
		return
	}

	input, err := parseEnvelope(body)
	if err != nil {
		log.Warn().Err(err).Int("bodySize", len(body)).Msg("Submission: invalid envelope")
		h.reject(w, len(body), http.StatusBadRequest, err.Error())
		return
	}

	name := jobs.NewExecutionName(jobs.ExecutionPrefix)
	out, err := h.sfn.StartExecution(r.Context(), &sfn.StartExecutionInput{
		StateMachineArn: aws.String(h.stateMachineArn),
		Input:           aws.String(input),
		Name:            aws.String(name),
	})
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("Failed to start analysis execution")
		h.reject(w, len(body), http.StatusInternalServerError, "failed to start processing")
		return
	}

	arn := aws.ToString(out.ExecutionArn)
	log.Info().
		Str("executionArn", arn).
		Int("envelopeBytes", len(body)).
		Msg("Analysis execution started")
	if h.metrics {
		metrics.RecordSubmission(len(body), http.StatusOK)
	}
	respondJSON(w, http.StatusOK, map[string]string{"executionArn": arn})
}

func (h *Handler) reject(w http.ResponseWriter, size, status int, msg string) {
	if h.metrics {
		metrics.RecordSubmission(size, status)
	}
	httpError(w, status, msg)
}

// parseEnvelope checks the envelope shape and returns its input string,
// which is passed to StartExecution verbatim.
func parseEnvelope(body []byte) (string, error) {
	if len(body) == 0 {
		return "", errors.New("empty body")
	}
	var env workflow.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", errors.New("body is not a JSON envelope")
	}
	if env.Input == "" {
		return "", errors.New("missing input")
	}
	var in workflow.Input
	if err := json.Unmarshal([]byte(env.Input), &in); err != nil {
		return "", errors.New("input is not valid JSON")
	}
	if in.ImageData == "" {
		return "", errors.New("no image data provided")
	}
	return env.Input, nil
}

// handleStatus describes one execution by name.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request, name string) {
	arn, err := jobs.ExecutionArn(h.stateMachineArn, name)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "status lookup not configured")
		return
	}

	start := time.Now()
	out, err := h.sfn.DescribeExecution(r.Context(), &sfn.DescribeExecutionInput{
		ExecutionArn: aws.String(arn),
	})
	if err != nil {
		var notFound *sfntypes.ExecutionDoesNotExist
		if errors.As(err, &notFound) {
			httpError(w, http.StatusNotFound, "execution not found")
			return
		}
		log.Error().Err(err).Str("executionArn", arn).Msg("Failed to describe execution")
		httpError(w, http.StatusBadGateway, "failed to query status")
		return
	}

	resp := workflow.StatusResponse{
		Status: string(out.Status),
		Output: aws.ToString(out.Output),
		Error:  aws.ToString(out.Error),
		Cause:  aws.ToString(out.Cause),
	}
	if h.metrics {
		metrics.RecordStatusQuery(resp.Status, time.Since(start))
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// httpError sends a JSON error response.
func httpError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
