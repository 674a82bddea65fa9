package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fpang/screen-productivity/internal/jobs"
)

// StatusResponse is the status endpoint's body.
type StatusResponse struct {
	Status string `json:"status"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
	Cause  string `json:"cause,omitempty"`
}

// HTTPStatusSource answers status queries through the submission
// endpoint's GET {endpoint}/{name}/status route, for clients without
// Step Functions credentials.
type HTTPStatusSource struct {
	endpoint   string
	httpClient *http.Client
}

var _ StatusSource = (*HTTPStatusSource)(nil)

// NewHTTPStatusSource creates a source rooted at the submission endpoint URL.
func NewHTTPStatusSource(endpoint string) *HTTPStatusSource {
	return &HTTPStatusSource{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient replaces the HTTP client (used by tests).
func (s *HTTPStatusSource) WithHTTPClient(c *http.Client) *HTTPStatusSource {
	s.httpClient = c
	return s
}

// Describe fetches the execution's status by the name segment of its ARN.
func (s *HTTPStatusSource) Describe(ctx context.Context, handle JobHandle) (Status, error) {
	url := s.endpoint + "/" + jobs.ExecutionName(string(handle)) + "/status"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Status{}, fmt.Errorf("build status request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Status{}, fmt.Errorf("read status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var sr StatusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return Status{}, fmt.Errorf("decode status response: %w", err)
	}
	return Status(sr), nil
}
