package sink

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/talonjobs/talon/internal/model"
)

type stubStore struct {
	outcomes []Outcome
	errs     []error
	calls    int
}

func (s *stubStore) Store(_ context.Context, _ model.Job) (Outcome, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return OutcomeServerError, err
	}
	return s.outcomes[i], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func feed(jobs ...model.Job) <-chan model.Job {
	ch := make(chan model.Job, len(jobs))
	for _, j := range jobs {
		ch <- j
	}
	close(ch)
	return ch
}

func TestConsume_TalliesOutcomes(t *testing.T) {
	store := &stubStore{
		outcomes: []Outcome{OutcomeCreated, OutcomeDuplicate, OutcomeBadRequest, OutcomeServerError},
	}
	in := feed(
		model.Job{JobID: "1"},
		model.Job{JobID: "2"},
		model.Job{JobID: "3"},
		model.Job{JobID: "4"},
	)

	counts := Consume(context.Background(), in, store, discardLogger())

	if counts.Stored != 1 {
		t.Errorf("Stored = %d, want 1", counts.Stored)
	}
	if counts.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", counts.Duplicates)
	}
	if counts.Failed != 2 {
		t.Errorf("Failed = %d, want 2", counts.Failed)
	}
}

func TestConsume_DuplicateIsNotAFailure(t *testing.T) {
	store := &stubStore{outcomes: []Outcome{OutcomeDuplicate}}
	counts := Consume(context.Background(), feed(model.Job{JobID: "1"}), store, discardLogger())

	if counts.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", counts.Duplicates)
	}
	if counts.Failed != 0 {
		t.Errorf("Failed = %d, want 0", counts.Failed)
	}
}

func TestConsume_TransportErrorCountsAsFailed(t *testing.T) {
	store := &stubStore{
		outcomes: []Outcome{0, OutcomeCreated},
		errs:     []error{errors.New("connection refused"), nil},
	}
	in := feed(model.Job{JobID: "1"}, model.Job{JobID: "2"})

	counts := Consume(context.Background(), in, store, discardLogger())

	if counts.Failed != 1 {
		t.Errorf("Failed = %d, want 1", counts.Failed)
	}
	if counts.Stored != 1 {
		t.Errorf("Stored = %d, want 1", counts.Stored)
	}
	if store.calls != 2 {
		t.Errorf("store called %d times, want 2", store.calls)
	}
}

func TestAPISink_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   Outcome
	}{
		{"created", http.StatusCreated, OutcomeCreated},
		{"ok", http.StatusOK, OutcomeCreated},
		{"conflict", http.StatusConflict, OutcomeDuplicate},
		{"bad request", http.StatusBadRequest, OutcomeBadRequest},
		{"server error", http.StatusInternalServerError, OutcomeServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/jobs" {
					t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			s := NewAPISink(srv.URL, srv.Client())
			outcome, err := s.Store(context.Background(), model.Job{JobID: "1"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome != tc.want {
				t.Errorf("outcome = %s, want %s", outcome, tc.want)
			}
		})
	}
}

func TestAPISink_TransportErrorReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	s := NewAPISink(srv.URL, http.DefaultClient)
	if _, err := s.Store(context.Background(), model.Job{JobID: "1"}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestNopSink_ReportsCreated(t *testing.T) {
	s := NewNopSink(discardLogger())
	outcome, err := s.Store(context.Background(), model.Job{JobID: "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeCreated {
		t.Errorf("outcome = %s, want created", outcome)
	}
}
