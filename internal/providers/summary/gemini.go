package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"server/internal/domain"
)

const (
	geminiDefaultTimeout = 30 * time.Second
	geminiDefaultModel   = "gemini-2.0-flash"
	geminiProviderName   = "gemini"
)

// GeminiOptions controls how the Gemini summarizer is configured.
type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Gemini summarizes text through the generateContent endpoint.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature    float64 `json:"temperature,omitempty"`
	CandidateCount int     `json:"candidateCount,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewGemini builds a Gemini summarizer. The API key may be empty; the first
// Summarize call then fails with domain.ErrNotConfigured so a partially
// configured service still starts.
func NewGemini(opts GeminiOptions) *Gemini {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = geminiDefaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: geminiDefaultTimeout}
	}
	return &Gemini{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  client,
	}
}

// Summarize condenses text into a 70-80 word spoken script suitable for a
// 30-second narration.
func (g *Gemini) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}
	if g.apiKey == "" {
		return "", fmt.Errorf("%w: gemini api key missing", domain.ErrNotConfigured)
	}

	payload := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildScriptPrompt(text)}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:    0.5,
			CandidateCount: 1,
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var out geminiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= 300 {
			return "", domain.NewProviderError(geminiProviderName, resp.StatusCode, "")
		}
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", domain.NewProviderError(geminiProviderName, resp.StatusCode, out.Error.Message)
	}

	script := extractText(out)
	if script == "" {
		return "", domain.NewProviderError(geminiProviderName, resp.StatusCode, "empty summary")
	}
	return script, nil
}

func (g *Gemini) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
}

func extractText(resp geminiResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				return text
			}
		}
	}
	return ""
}

func buildScriptPrompt(text string) string {
	sb := &strings.Builder{}
	sb.WriteString("Summarize the following text into a concise, engaging script for a 30-second educational video. ")
	sb.WriteString("The script should be approximately 70-80 words long. ")
	sb.WriteString("Focus on the most interesting facts. ")
	sb.WriteString("Do not include scene directions, just the spoken text.\n\n")
	fmt.Fprintf(sb, "Text: %q", text)
	return sb.String()
}

var _ Summarizer = (*Gemini)(nil)
