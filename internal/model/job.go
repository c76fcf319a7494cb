package model

// Sentinel values used when a detail page is missing a field. The record is
// still emitted; downstream consumers treat these as "unknown", not errors.
const (
	UnknownTitle       = "Unknown Title"
	UnknownCompany     = "Unknown Company"
	UnknownLocation    = "Unknown Location"
	UnknownDate        = "Unknown Date"
	NoDescription      = "No description available"
	SalaryNotSpecified = "Not specified"
)

// Job is a single scraped posting. The scraper fills the raw fields; the
// enrichment stage fills the classifier-derived fields and sets Enriched.
// JobID is the board's natural key and is unique within a run.
type Job struct {
	JobID       string `json:"jobId"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Salary      string `json:"salary"`
	PostedDate  string `json:"postedDate"` // YYYY-MM-DD when the source format was recognized
	URL         string `json:"url"`

	// Enrichment fields, populated from a Judgement.
	ParsedDescription  string   `json:"parsedDescription,omitempty"`
	ExpiresDate        string   `json:"expiresDate,omitempty"`
	MinDegree          string   `json:"minDegree,omitempty"`
	MinYearsExperience int      `json:"minYearsExperience,omitempty"`
	Modality           string   `json:"modality,omitempty"`
	Domain             string   `json:"domain,omitempty"`
	Languages          []string `json:"languages,omitempty"`
	Technologies       []string `json:"technologies,omitempty"`

	Enriched bool `json:"-"`
}

// ApplyJudgement merges the classifier's verdict onto the job.
func (j *Job) ApplyJudgement(v Judgement) {
	j.ParsedDescription = v.ParsedDescription
	j.ExpiresDate = v.DeadlineDate
	j.MinDegree = v.MinDegree
	j.MinYearsExperience = v.MinYearsExperience
	j.Modality = v.Modality
	j.Domain = v.Domain
	j.Languages = append([]string(nil), v.Languages...)
	j.Technologies = append([]string(nil), v.Technologies...)
	j.Enriched = true
}
