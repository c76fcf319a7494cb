package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/talonjobs/talon/internal/model"
)

// SQLiteStore persists postings in a SQLite database, keyed by the board's
// job ID. Storing an existing ID reports a duplicate; the stored row is never
// updated.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the jobs table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS jobs (
		job_id               TEXT PRIMARY KEY,
		title                TEXT NOT NULL,
		company              TEXT NOT NULL,
		location             TEXT NOT NULL,
		description          TEXT NOT NULL,
		salary               TEXT NOT NULL,
		posted_date          TEXT NOT NULL,
		url                  TEXT NOT NULL,
		parsed_description   TEXT,
		expires_date         TEXT,
		min_degree           TEXT,
		min_years_experience INTEGER,
		modality             TEXT,
		domain               TEXT,
		languages            TEXT,
		technologies         TEXT,
		ingested_at          DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating jobs table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Store inserts the posting. An existing job_id reports OutcomeDuplicate and
// leaves the stored row untouched.
func (s *SQLiteStore) Store(ctx context.Context, job model.Job) (Outcome, error) {
	languages, err := json.Marshal(job.Languages)
	if err != nil {
		return OutcomeBadRequest, nil
	}
	technologies, err := json.Marshal(job.Technologies)
	if err != nil {
		return OutcomeBadRequest, nil
	}

	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO jobs (
		job_id, title, company, location, description, salary, posted_date, url,
		parsed_description, expires_date, min_degree, min_years_experience,
		modality, domain, languages, technologies
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.JobID, job.Title, job.Company, job.Location, job.Description,
		job.Salary, job.PostedDate, job.URL,
		job.ParsedDescription, job.ExpiresDate, job.MinDegree, job.MinYearsExperience,
		job.Modality, job.Domain, string(languages), string(technologies),
	)
	if err != nil {
		return OutcomeServerError, fmt.Errorf("inserting job %s: %w", job.JobID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return OutcomeServerError, fmt.Errorf("inserting job %s: %w", job.JobID, err)
	}
	if rows == 0 {
		return OutcomeDuplicate, nil
	}
	return OutcomeCreated, nil
}

// GetJob returns the stored posting with the given job ID, or sql.ErrNoRows.
func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (model.Job, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM jobs WHERE job_id = ?", jobID)
	return scanJob(row)
}

// ListJobs returns stored postings, newest first. Empty filter values match
// everything; limit <= 0 means no limit.
func (s *SQLiteStore) ListJobs(ctx context.Context, domain, modality string, limit int) ([]model.Job, error) {
	query := selectColumns + " FROM jobs WHERE 1=1"
	var args []any
	if domain != "" {
		query += " AND domain = ?"
		args = append(args, domain)
	}
	if modality != "" {
		query += " AND modality = ?"
		args = append(args, modality)
	}
	query += " ORDER BY ingested_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobIDs returns every stored job ID, used to seed the scraper's seen set so
// re-runs skip postings already ingested.
func (s *SQLiteStore) JobIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT job_id FROM jobs")
	if err != nil {
		return nil, fmt.Errorf("listing job ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectColumns = `SELECT job_id, title, company, location, description,
	salary, posted_date, url, parsed_description, expires_date, min_degree,
	min_years_experience, modality, domain, languages, technologies`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (model.Job, error) {
	var job model.Job
	var parsedDesc, expires, degree, modality, domain sql.NullString
	var years sql.NullInt64
	var languages, technologies sql.NullString

	err := row.Scan(
		&job.JobID, &job.Title, &job.Company, &job.Location, &job.Description,
		&job.Salary, &job.PostedDate, &job.URL,
		&parsedDesc, &expires, &degree, &years, &modality, &domain,
		&languages, &technologies,
	)
	if err != nil {
		return model.Job{}, err
	}

	job.ParsedDescription = parsedDesc.String
	job.ExpiresDate = expires.String
	job.MinDegree = degree.String
	job.MinYearsExperience = int(years.Int64)
	job.Modality = modality.String
	job.Domain = domain.String
	if languages.String != "" {
		json.Unmarshal([]byte(languages.String), &job.Languages)
	}
	if technologies.String != "" {
		json.Unmarshal([]byte(technologies.String), &job.Technologies)
	}
	job.Enriched = job.ParsedDescription != ""
	return job, nil
}
