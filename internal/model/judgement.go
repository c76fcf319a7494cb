package model

import (
	"fmt"
	"slices"
)

// DeadlineOngoing is the classifier's sentinel for postings without an
// explicit expiry date.
const DeadlineOngoing = "Ongoing until requisition is closed"

// Value sets the classifier is constrained to. These mirror the JSON schema
// sent with every classification request.
var (
	AllowedDegrees = []string{"Bachelor's", "Master's", "Ph.D", "Unspecified"}

	AllowedModalities = []string{"Remote", "Hybrid", "In-Office"}

	AllowedDomains = []string{
		"Backend", "Full-Stack", "AI/ML", "Data", "QA", "Front-End",
		"Security", "DevOps", "Mobile", "Site Reliability", "Networking",
		"Embedded Systems", "Gaming", "Financial", "Other",
	}
)

// Judgement is the classifier's structured verdict on one posting. Field names
// match the JSON payload the model is schema-constrained to produce.
type Judgement struct {
	ParsedDescription  string   `json:"ParsedDescription"`
	DeadlineDate       string   `json:"DeadlineDate"`
	MinDegree          string   `json:"MinDegree"`
	MinYearsExperience int      `json:"MinYearsExperience"`
	Modality           string   `json:"Modality"`
	Domain             string   `json:"Domain"`
	Languages          []string `json:"Languages"`
	Technologies       []string `json:"Technologies"`
	Relevant           bool     `json:"IsSoftwareEngineerRelated"`
}

// Validate checks the judgement against the declared value sets. A judgement
// that fails validation is dropped, never coerced into a best-guess value.
func (v Judgement) Validate() error {
	if v.MinYearsExperience < 0 || v.MinYearsExperience > 25 {
		return fmt.Errorf("MinYearsExperience %d outside [0,25]", v.MinYearsExperience)
	}
	if !slices.Contains(AllowedDegrees, v.MinDegree) {
		return fmt.Errorf("MinDegree %q not in allowed set", v.MinDegree)
	}
	if !slices.Contains(AllowedModalities, v.Modality) {
		return fmt.Errorf("Modality %q not in allowed set", v.Modality)
	}
	if !slices.Contains(AllowedDomains, v.Domain) {
		return fmt.Errorf("Domain %q not in allowed set", v.Domain)
	}
	return nil
}
