package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/talonjobs/talon/internal/model"
	"github.com/talonjobs/talon/internal/retry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{MaxAttempts: maxAttempts, InitialDelay: time.Millisecond, BackoffFactor: 2.0}
}

// stubProvider returns a canned response per call, keyed by call order.
type stubProvider struct {
	fn    func(prompt string) (string, error)
	calls atomic.Int64
}

func (p *stubProvider) Complete(_ context.Context, prompt string) (string, error) {
	p.calls.Add(1)
	return p.fn(prompt)
}

func validJudgementJSON(relevant bool) string {
	v := model.Judgement{
		ParsedDescription:  "Builds backend services.",
		DeadlineDate:       model.DeadlineOngoing,
		MinDegree:          "Bachelor's",
		MinYearsExperience: 4,
		Modality:           "Hybrid",
		Domain:             "Backend",
		Languages:          []string{"Go"},
		Technologies:       []string{"PostgreSQL"},
		Relevant:           relevant,
	}
	raw, _ := json.Marshal(v)
	return string(raw)
}

func feed(jobs ...model.Job) <-chan model.Job {
	in := make(chan model.Job, len(jobs))
	for _, j := range jobs {
		in <- j
	}
	close(in)
	return in
}

func collect(t *testing.T, ch <-chan model.Job) []model.Job {
	t.Helper()
	var jobs []model.Job
	timeout := time.After(5 * time.Second)
	for {
		select {
		case job, ok := <-ch:
			if !ok {
				return jobs
			}
			jobs = append(jobs, job)
		case <-timeout:
			t.Fatal("timed out waiting for stream to close")
		}
	}
}

func TestRun_EnrichesRelevantJob(t *testing.T) {
	p := &stubProvider{fn: func(string) (string, error) {
		return validJudgementJSON(true), nil
	}}
	s := New(p, 2, fastPolicy(3), false, discardLogger())

	got := collect(t, s.Run(context.Background(), feed(model.Job{JobID: "1", Title: "Go Engineer", Description: "Build services."})))

	if len(got) != 1 {
		t.Fatalf("expected 1 enriched job, got %d", len(got))
	}
	j := got[0]
	if !j.Enriched {
		t.Error("expected Enriched to be set")
	}
	if j.Domain != "Backend" || j.MinYearsExperience != 4 || j.Modality != "Hybrid" {
		t.Errorf("judgement not applied: %+v", j)
	}
	if j.ExpiresDate != model.DeadlineOngoing {
		t.Errorf("expected ongoing deadline, got %q", j.ExpiresDate)
	}
}

func TestRun_FiltersIrrelevantJob(t *testing.T) {
	p := &stubProvider{fn: func(string) (string, error) {
		return validJudgementJSON(false), nil
	}}
	s := New(p, 2, fastPolicy(3), false, discardLogger())

	got := collect(t, s.Run(context.Background(), feed(model.Job{JobID: "1", Title: "Forklift Operator"})))
	if len(got) != 0 {
		t.Fatalf("expected irrelevant job to be filtered, got %d records", len(got))
	}
}

func TestRun_DropsUndecodableJudgement(t *testing.T) {
	p := &stubProvider{fn: func(string) (string, error) {
		return `{not json`, nil
	}}
	s := New(p, 2, fastPolicy(3), false, discardLogger())

	got := collect(t, s.Run(context.Background(), feed(model.Job{JobID: "1"})))
	if len(got) != 0 {
		t.Fatalf("expected undecodable judgement to be dropped, got %d records", len(got))
	}
}

func TestRun_DropsInvalidJudgement(t *testing.T) {
	// Decodes fine but violates the domain enum.
	p := &stubProvider{fn: func(string) (string, error) {
		return `{"ParsedDescription":"x","DeadlineDate":"x","MinDegree":"Bachelor's",
			"MinYearsExperience":3,"Modality":"Remote","Domain":"Astrology",
			"Languages":[],"Technologies":[],"IsSoftwareEngineerRelated":true}`, nil
	}}
	s := New(p, 2, fastPolicy(3), false, discardLogger())

	got := collect(t, s.Run(context.Background(), feed(model.Job{JobID: "1"})))
	if len(got) != 0 {
		t.Fatalf("expected invalid judgement to be dropped, got %d records", len(got))
	}
}

func TestRun_ExhaustedRetriesDropOnlyThatJob(t *testing.T) {
	p := &stubProvider{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Doomed") {
			return "", errors.New("api down")
		}
		return validJudgementJSON(true), nil
	}}
	s := New(p, 2, fastPolicy(2), false, discardLogger())

	got := collect(t, s.Run(context.Background(), feed(
		model.Job{JobID: "1", Title: "Doomed Role"},
		model.Job{JobID: "2", Title: "Fine Role"},
	)))

	if len(got) != 1 {
		t.Fatalf("expected 1 surviving job, got %d", len(got))
	}
	if got[0].JobID != "2" {
		t.Errorf("expected job 2 to survive, got %s", got[0].JobID)
	}
}

func TestRun_ReleasesTicketsOnAllPaths(t *testing.T) {
	// With limit 1, the stream only completes if every terminal outcome
	// (success, filtered, decode failure, exhausted retries) releases its slot.
	var call atomic.Int64
	p := &stubProvider{fn: func(string) (string, error) {
		switch call.Add(1) {
		case 1:
			return validJudgementJSON(true), nil
		case 2:
			return validJudgementJSON(false), nil
		case 3:
			return `{broken`, nil
		default:
			return "", errors.New("always fails")
		}
	}}
	s := New(p, 1, fastPolicy(1), false, discardLogger())

	jobs := []model.Job{
		{JobID: "a"}, {JobID: "b"}, {JobID: "c"}, {JobID: "d"}, {JobID: "e"},
	}
	got := collect(t, s.Run(context.Background(), feed(jobs...)))

	// Only the first job survives; the point is that the stream terminated.
	if len(got) != 1 {
		t.Fatalf("expected 1 surviving job, got %d", len(got))
	}
}

func TestRun_RespectsConcurrencyBound(t *testing.T) {
	const limit = 3
	var inFlight, peak atomic.Int64

	p := &stubProvider{fn: func(string) (string, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return validJudgementJSON(true), nil
	}}
	s := New(p, limit, fastPolicy(1), false, discardLogger())

	var jobs []model.Job
	for i := 0; i < 20; i++ {
		jobs = append(jobs, model.Job{JobID: string(rune('a' + i))})
	}
	collect(t, s.Run(context.Background(), feed(jobs...)))

	if got := peak.Load(); got > limit {
		t.Fatalf("observed %d concurrent classifications, limit is %d", got, limit)
	}
}

func TestRun_DryRunSynthesizesJudgement(t *testing.T) {
	p := &stubProvider{fn: func(string) (string, error) {
		t.Error("dry run must not call the provider")
		return "", nil
	}}
	s := New(p, 2, fastPolicy(3), true, discardLogger())

	got := collect(t, s.Run(context.Background(), feed(model.Job{JobID: "1", Title: "Go Engineer"})))

	if len(got) != 1 {
		t.Fatalf("expected 1 job, got %d", len(got))
	}
	j := got[0]
	if !j.Enriched {
		t.Error("expected Enriched to be set in dry run")
	}
	if j.Domain != "Backend" || j.MinDegree != "Bachelor's" {
		t.Errorf("unexpected placeholder judgement: %+v", j)
	}
	if p.calls.Load() != 0 {
		t.Errorf("provider called %d times in dry run", p.calls.Load())
	}
}
