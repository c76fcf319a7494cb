// Package server exposes stored postings over a small HTTP API.
package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/talonjobs/talon/internal/model"
)

// JobReader is the read side of the job store.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (model.Job, error)
	ListJobs(ctx context.Context, domain, modality string, limit int) ([]model.Job, error)
}

// Server serves stored postings.
type Server struct {
	reader JobReader
	logger *slog.Logger
}

// New creates a server backed by reader.
func New(reader JobReader, logger *slog.Logger) *Server {
	return &Server{reader: reader, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.healthz)
	r.GET("/jobs", s.listJobs)
	r.GET("/jobs/:jobID", s.getJob)
	return r
}

// Run serves the API on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("serving jobs api", "addr", addr)
	return s.Router().Run(addr)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listJobs returns stored postings, optionally filtered by domain and
// modality. limit caps the result count; 0 means no cap.
func (s *Server) listJobs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	jobs, err := s.reader.ListJobs(c.Request.Context(), c.Query("domain"), c.Query("modality"), limit)
	if err != nil {
		s.logger.Error("listing jobs failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) getJob(c *gin.Context) {
	jobID := c.Param("jobID")

	job, err := s.reader.GetJob(c.Request.Context(), jobID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		s.logger.Error("loading job failed", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}
	c.JSON(http.StatusOK, job)
}
