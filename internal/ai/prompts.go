package ai

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/job_judgement.md
var jobJudgementPromptRaw string

// JobJudgementTemplate is the parsed prompt template for job classification.
// Parsed once at package init; reused on every classification call.
var JobJudgementTemplate = template.Must(template.New("job_judgement").Parse(jobJudgementPromptRaw))
