package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/talonjobs/talon/internal/model"
)

// APISink posts enriched jobs to a downstream jobs API. HTTP status codes map
// directly onto outcomes: 2xx created, 409 duplicate, other 4xx bad request,
// 5xx server error.
type APISink struct {
	baseURL string
	client  *http.Client
}

// NewAPISink creates a sink posting to {baseURL}/jobs.
func NewAPISink(baseURL string, client *http.Client) *APISink {
	return &APISink{baseURL: baseURL, client: client}
}

// Store posts the job. Transport failures (connection refused, timeout)
// return an error; any HTTP response is classified as an outcome.
func (s *APISink) Store(ctx context.Context, job model.Job) (Outcome, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return OutcomeBadRequest, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return OutcomeBadRequest, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return OutcomeServerError, fmt.Errorf("posting job %s: %w", job.JobID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return OutcomeCreated, nil
	case resp.StatusCode == http.StatusConflict:
		return OutcomeDuplicate, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return OutcomeBadRequest, nil
	default:
		return OutcomeServerError, nil
	}
}
