package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/talonjobs/talon/internal/model"
)

type fakeReader struct {
	jobs []model.Job
}

func (f *fakeReader) GetJob(_ context.Context, jobID string) (model.Job, error) {
	for _, j := range f.jobs {
		if j.JobID == jobID {
			return j, nil
		}
	}
	return model.Job{}, sql.ErrNoRows
}

func (f *fakeReader) ListJobs(_ context.Context, domain, modality string, limit int) ([]model.Job, error) {
	var out []model.Job
	for _, j := range f.jobs {
		if domain != "" && j.Domain != domain {
			continue
		}
		if modality != "" && j.Modality != modality {
			continue
		}
		out = append(out, j)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func testServer(jobs ...model.Job) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(&fakeReader{jobs: jobs}, logger)
}

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, testServer(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestListJobs(t *testing.T) {
	s := testServer(
		model.Job{JobID: "1", Domain: "Backend", Modality: "Remote"},
		model.Job{JobID: "2", Domain: "Data", Modality: "Hybrid"},
		model.Job{JobID: "3", Domain: "Backend", Modality: "Hybrid"},
	)

	cases := []struct {
		name  string
		path  string
		want  int
		first string
	}{
		{"all", "/jobs", 3, "1"},
		{"by domain", "/jobs?domain=Backend", 2, "1"},
		{"by modality", "/jobs?modality=Hybrid", 2, "2"},
		{"combined", "/jobs?domain=Backend&modality=Hybrid", 1, "3"},
		{"limited", "/jobs?limit=1", 1, "1"},
		{"no match", "/jobs?domain=Gaming", 0, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, s, tc.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			var body struct {
				Jobs  []model.Job `json:"jobs"`
				Count int         `json:"count"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Count != tc.want || len(body.Jobs) != tc.want {
				t.Fatalf("count = %d (len %d), want %d", body.Count, len(body.Jobs), tc.want)
			}
			if tc.want > 0 && body.Jobs[0].JobID != tc.first {
				t.Errorf("first job = %s, want %s", body.Jobs[0].JobID, tc.first)
			}
		})
	}
}

func TestListJobs_InvalidLimit(t *testing.T) {
	rec := doRequest(t, testServer(), "/jobs?limit=banana")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetJob(t *testing.T) {
	s := testServer(model.Job{JobID: "42", Title: "Backend Engineer", Domain: "Backend"})

	rec := doRequest(t, s, "/jobs/42")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var job model.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if job.JobID != "42" || job.Title != "Backend Engineer" {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	rec := doRequest(t, testServer(), "/jobs/999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
