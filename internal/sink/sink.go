// Package sink persists enriched postings and classifies each store attempt
// into an outcome for the run summary.
package sink

import (
	"context"
	"log/slog"

	"github.com/talonjobs/talon/internal/model"
)

// Outcome classifies the result of one store attempt.
type Outcome int

const (
	// OutcomeCreated means the posting was stored for the first time.
	OutcomeCreated Outcome = iota
	// OutcomeDuplicate means a posting with the same job ID already exists.
	// Duplicates are expected and never retried.
	OutcomeDuplicate
	// OutcomeBadRequest means the sink rejected the payload as malformed.
	OutcomeBadRequest
	// OutcomeServerError means the sink failed on its side. The posting is
	// dropped; blind retries without idempotency keys are unsafe.
	OutcomeServerError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeBadRequest:
		return "bad_request"
	case OutcomeServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// Store persists one enriched posting. A non-nil error means the attempt
// could not be classified at all (transport failure); otherwise the Outcome
// describes what happened.
type Store interface {
	Store(ctx context.Context, job model.Job) (Outcome, error)
}

// Counts tallies sink outcomes for the run summary.
type Counts struct {
	Stored     int
	Duplicates int
	Failed     int
}

// Consume drains the enriched stream into the store, logging each outcome
// with the posting's natural key. It returns when the stream closes.
func Consume(ctx context.Context, in <-chan model.Job, store Store, logger *slog.Logger) Counts {
	var counts Counts

	for job := range in {
		outcome, err := store.Store(ctx, job)
		if err != nil {
			counts.Failed++
			logger.Error("store attempt failed", "job_id", job.JobID, "error", err)
			continue
		}

		switch outcome {
		case OutcomeCreated:
			counts.Stored++
			logger.Info("stored job", "job_id", job.JobID, "title", job.Title)
		case OutcomeDuplicate:
			counts.Duplicates++
			logger.Debug("duplicate job, skipped", "job_id", job.JobID)
		case OutcomeBadRequest:
			counts.Failed++
			logger.Error("sink rejected payload", "job_id", job.JobID)
		case OutcomeServerError:
			counts.Failed++
			logger.Error("sink server error", "job_id", job.JobID)
		}
	}

	return counts
}
