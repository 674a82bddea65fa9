// Package workflow submits a preprocessed screenshot to the analysis
// workflow and drives a bounded polling loop until the job reaches a
// terminal state.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-productivity/internal/failure"
)

const submitStage = "submit"

// DefaultCeilingBytes is the largest serialized envelope the transport accepts.
const DefaultCeilingBytes = 262000

// JobHandle identifies one workflow execution (a Step Functions execution ARN).
type JobHandle string

// Input is the job input carried inside the envelope.
type Input struct {
	ImageData string `json:"image_data"`
}

// Envelope is the request body of the submission endpoint. Input holds the
// compact JSON encoding of an Input, as the endpoint forwards it verbatim
// to StartExecution.
type Envelope struct {
	Input string `json:"input"`
}

// submitResponse is the submission endpoint's success body.
type submitResponse struct {
	ExecutionArn string `json:"executionArn"`
}

// BuildEnvelope wraps a base64 image in the submission envelope and returns
// its serialized form.
func BuildEnvelope(imageBase64 string) ([]byte, error) {
	inner, err := json.Marshal(Input{ImageData: imageBase64})
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}
	body, err := json.Marshal(Envelope{Input: string(inner)})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return body, nil
}

// ValidatePayload performs the local pre-flight checks on a base64 image and
// returns the serialized envelope. Nothing is sent.
func ValidatePayload(imageBase64 string, ceiling int) ([]byte, error) {
	if imageBase64 == "" {
		return nil, failure.Input(submitStage, "no image data provided", nil)
	}
	if len(imageBase64) > ceiling {
		return nil, failure.SizeLimit(submitStage, len(imageBase64), ceiling)
	}
	body, err := BuildEnvelope(imageBase64)
	if err != nil {
		return nil, failure.Input(submitStage, "failed to build envelope", err)
	}
	if len(body) > ceiling {
		e := failure.SizeLimit(submitStage, len(body), ceiling)
		e.Detail = "serialized envelope exceeds transport ceiling"
		return nil, e
	}
	return body, nil
}

// Submitter posts job envelopes to the workflow submission endpoint.
type Submitter struct {
	endpoint   string
	ceiling    int
	httpClient *http.Client
}

// NewSubmitter creates a Submitter for the given endpoint URL. A ceiling of
// zero selects DefaultCeilingBytes.
func NewSubmitter(endpoint string, ceiling int) *Submitter {
	if ceiling <= 0 {
		ceiling = DefaultCeilingBytes
	}
	return &Submitter{
		endpoint:   endpoint,
		ceiling:    ceiling,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the HTTP client (used by tests).
func (s *Submitter) WithHTTPClient(c *http.Client) *Submitter {
	s.httpClient = c
	return s
}

// Submit validates the payload locally, posts the envelope, and returns the
// job handle. Pre-flight failures are reported before any network call.
func (s *Submitter) Submit(ctx context.Context, imageBase64 string) (JobHandle, error) {
	if s.endpoint == "" {
		return "", failure.Input(submitStage, "submission endpoint not configured", nil)
	}
	body, err := ValidatePayload(imageBase64, s.ceiling)
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("endpoint", s.endpoint).
		Int("envelope_bytes", len(body)).
		Msg("Submitting analysis job")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", failure.Input(submitStage, "invalid submission endpoint", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", failure.Transport(submitStage, "POST failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", failure.Transport(submitStage, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", string(respBody)).
			Msg("Submission endpoint returned error")
		return "", failure.Transport(submitStage, fmt.Sprintf("endpoint returned status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var result submitResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", failure.Transport(submitStage, "invalid response body", err)
	}
	if result.ExecutionArn == "" {
		return "", failure.Transport(submitStage, "no execution ARN received", nil)
	}

	log.Info().Str("executionArn", result.ExecutionArn).Msg("Analysis started")
	return JobHandle(result.ExecutionArn), nil
}
