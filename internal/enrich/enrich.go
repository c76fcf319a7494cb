// Package enrich consumes the raw posting stream, classifies each posting
// with the LLM provider, and emits only the relevant, successfully-judged
// records. One posting's failure never affects its siblings.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/talonjobs/talon/internal/ai"
	"github.com/talonjobs/talon/internal/limiter"
	"github.com/talonjobs/talon/internal/model"
	"github.com/talonjobs/talon/internal/retry"
)

// Stage classifies raw postings under a concurrency bound.
type Stage struct {
	provider ai.Provider
	lim      *limiter.Limiter
	policy   retry.Policy
	dryRun   bool
	logger   *slog.Logger
}

// New creates an enrichment stage. maxConcurrent bounds simultaneous
// classification calls. When dryRun is set, the network call is skipped and a
// fixed placeholder judgement is synthesized, but the stage still exercises
// the same admission and emit/drop control flow.
func New(provider ai.Provider, maxConcurrent int, policy retry.Policy, dryRun bool, logger *slog.Logger) *Stage {
	return &Stage{
		provider: provider,
		lim:      limiter.New(maxConcurrent),
		policy:   policy,
		dryRun:   dryRun,
		logger:   logger,
	}
}

// Run consumes in and returns the enriched stream. The output channel closes
// after the input is exhausted and every in-flight classification has
// finished. Output order is completion order.
func (s *Stage) Run(ctx context.Context, in <-chan model.Job) <-chan model.Job {
	out := make(chan model.Job)

	go func() {
		defer close(out)
		var wg sync.WaitGroup

		for job := range in {
			// Admission is acquired before the worker spawns so the input
			// loop itself provides backpressure.
			if err := s.lim.Acquire(ctx); err != nil {
				s.logger.Warn("enrichment cancelled", "error", err)
				break
			}

			wg.Add(1)
			go func(job model.Job) {
				defer wg.Done()
				defer s.lim.Release()

				enriched, ok := s.process(ctx, job)
				if !ok {
					return
				}
				select {
				case out <- enriched:
				case <-ctx.Done():
				}
			}(job)
		}

		wg.Wait()
	}()

	return out
}

// process classifies one posting. It reports ok=false when the record is
// dropped: exhausted retries, an undecodable or invalid judgement, or a
// not-relevant verdict.
func (s *Stage) process(ctx context.Context, job model.Job) (model.Job, bool) {
	var judgement model.Judgement

	if s.dryRun {
		s.logger.Debug("dry run, synthesizing judgement", "job_id", job.JobID, "title", job.Title)
		judgement = placeholderJudgement(job)
	} else {
		prompt, err := s.buildPrompt(job)
		if err != nil {
			s.logger.Error("building prompt failed", "job_id", job.JobID, "error", err)
			return model.Job{}, false
		}

		raw, err := retry.Do(ctx, s.policy, s.logger, func(ctx context.Context) (string, error) {
			return s.provider.Complete(ctx, prompt)
		})
		if err != nil {
			s.logger.Error("classification failed", "job_id", job.JobID, "error", err)
			return model.Job{}, false
		}

		if err := json.Unmarshal([]byte(raw), &judgement); err != nil {
			s.logger.Error("judgement did not decode",
				"job_id", job.JobID,
				"error", err,
				"payload", raw,
			)
			return model.Job{}, false
		}
		if err := judgement.Validate(); err != nil {
			s.logger.Error("judgement failed validation",
				"job_id", job.JobID,
				"error", err,
				"payload", raw,
			)
			return model.Job{}, false
		}
	}

	if !judgement.Relevant {
		s.logger.Debug("filtered non-software job", "job_id", job.JobID, "title", job.Title)
		return model.Job{}, false
	}

	job.ApplyJudgement(judgement)
	return job, true
}

func (s *Stage) buildPrompt(job model.Job) (string, error) {
	var buf bytes.Buffer
	err := ai.JobJudgementTemplate.Execute(&buf, struct{ Title, Description string }{
		Title:       job.Title,
		Description: job.Description,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// placeholderJudgement is the fixed verdict used in dry-run mode.
func placeholderJudgement(job model.Job) model.Judgement {
	return model.Judgement{
		ParsedDescription:  fmt.Sprintf("Mock parsed description for %s", job.Title),
		DeadlineDate:       model.DeadlineOngoing,
		MinDegree:          "Bachelor's",
		MinYearsExperience: 3,
		Modality:           "Remote",
		Domain:             "Backend",
		Languages:          []string{"Go", "Python"},
		Technologies:       []string{"Docker", "Kubernetes"},
		Relevant:           true,
	}
}
