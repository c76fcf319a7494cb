package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/talonjobs/talon/internal/model"
)

// judgementSchema is the JSON Schema enforced server-side via OpenAI
// structured outputs. It matches model.Judgement exactly so the response can
// be decoded directly.
var judgementSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"ParsedDescription": map[string]any{
			"type":        "string",
			"description": "A concise summary of the job role and key responsibilities",
		},
		"DeadlineDate": map[string]any{
			"type":        "string",
			"description": "Deadline or expiry date for the job posting. Use '" + model.DeadlineOngoing + "' if not specified",
		},
		"MinDegree": map[string]any{
			"type":        "string",
			"enum":        model.AllowedDegrees,
			"description": "Minimum degree required for the role",
		},
		"MinYearsExperience": map[string]any{
			"type":    "integer",
			"minimum": 0,
			"maximum": 25,
			"description": "Minimum years of professional experience required. CRITICAL RULES: " +
				"1) If job title contains 'Senior' or 'Sr.' set to at least 4 years, " +
				"2) If job title contains 'Principal', 'Staff', 'Lead', or 'Director' set to at least 7 years, " +
				"3) If job title contains 'Mid-level' set to at least 2 years, " +
				"4) Otherwise extract specific years from description, " +
				"5) If no experience mentioned and no seniority keywords, set to 0",
		},
		"Modality": map[string]any{
			"type":        "string",
			"enum":        model.AllowedModalities,
			"description": "Work arrangement. Default to 'In-Office' if unclear",
		},
		"Domain": map[string]any{
			"type":        "string",
			"enum":        model.AllowedDomains,
			"description": "Technical domain. If description focuses on server-side or microservices development, choose 'Backend'",
		},
		"Languages": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Programming languages mentioned in the job. Only include programming languages, not spoken languages",
		},
		"Technologies": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Software tools, frameworks, databases, and technologies mentioned in the job",
		},
		"IsSoftwareEngineerRelated": map[string]any{
			"type":        "boolean",
			"description": "Whether the job is primarily related to software engineering",
		},
	},
	"required": []string{
		"ParsedDescription", "DeadlineDate", "MinDegree", "MinYearsExperience",
		"Modality", "Domain", "Languages", "Technologies", "IsSoftwareEngineerRelated",
	},
}

// OpenAIProvider calls the OpenAI /v1/chat/completions endpoint with
// structured outputs.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIProvider creates a provider targeting the OpenAI API.
func NewOpenAIProvider(baseURL, apiKey, model string, httpClient *http.Client) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
	}
}

// chatRequest mirrors the OpenAI /v1/chat/completions request body.
type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    int            `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string         `json:"type"`
	JSONSchema jsonSchemaSpec `json:"json_schema"`
}

type jsonSchemaSpec struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

// chatResponse mirrors the relevant fields of the OpenAI response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends prompt to OpenAI and returns the message content: a JSON
// string conforming to judgementSchema. Rate-limit and server errors are
// returned as model.HTTPError so the retry policy can classify them.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a precise structured data extractor for job descriptions."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaSpec{
				Name:   "job_judgement",
				Strict: true,
				Schema: judgementSchema,
			},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read llm response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfterHeader(resp),
			Err:        fmt.Errorf("llm response: %s", string(respBytes)),
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBytes, &chatResp); err != nil {
		return "", fmt.Errorf("parse llm response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("llm error (%s): %s", chatResp.Error.Type, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}

func retryAfterHeader(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
