package llmclient

import (
	"context"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiEngine is a thin wrapper around the official genai client. It only
// focuses on the API call itself; prompt construction and failure isolation
// live with the caller.
type GeminiEngine struct {
	cli   *genai.Client
	model string
}

const defaultGeminiModel = "gemini-2.5-flash"

// NewGeminiEngine builds a client for the Gemini API. apiKey may be empty,
// in which case the genai client reads it from the environment.
func NewGeminiEngine(ctx context.Context, apiKey, model string) (*GeminiEngine, error) {
	cfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if strings.TrimSpace(apiKey) != "" {
		cfg.APIKey = strings.TrimSpace(apiKey)
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}
	return &GeminiEngine{cli: cli, model: model}, nil
}

func (g *GeminiEngine) Name() string { return "Gemini:" + g.model }

func (g *GeminiEngine) GenerateStream(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	contents := []*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}}

	var full strings.Builder
	for resp, err := range g.cli.Models.GenerateContentStream(ctx, g.model, contents, nil) {
		if err != nil {
			return full.String(), err
		}
		txt := responseText(resp)
		if txt == "" {
			continue
		}
		full.WriteString(txt)
		if onChunk != nil {
			onChunk(txt)
		}
	}
	if full.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return full.String(), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
