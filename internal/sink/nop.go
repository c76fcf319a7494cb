package sink

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/talonjobs/talon/internal/model"
)

// NopSink simulates a successful store without any I/O, for dry runs.
type NopSink struct {
	logger *slog.Logger
}

// NewNopSink returns a NopSink.
func NewNopSink(logger *slog.Logger) *NopSink {
	return &NopSink{logger: logger}
}

// Store logs the would-be payload and reports success.
func (s *NopSink) Store(_ context.Context, job model.Job) (Outcome, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return OutcomeBadRequest, nil
	}
	s.logger.Debug("dry run, skipping store",
		"job_id", job.JobID,
		"title", job.Title,
		"payload_bytes", len(payload),
	)
	return OutcomeCreated, nil
}
