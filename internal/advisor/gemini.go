package advisor

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"github.com/jamesbond008/mungers-mind/internal/config"
)

// ErrEmptyResponse is returned when the model produced no usable candidate.
var ErrEmptyResponse = errors.New("advisor: empty response from model")

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli         *genai.Client
	model       string
	timeout     time.Duration
	maxAttempts int
}

func NewGeminiClient(ctx context.Context, cfg config.Config) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.GeminiAPIKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	timeoutSeconds := cfg.AdvisorTimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	maxAttempts := cfg.AdvisorMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &GeminiClient{
		cli:         cli,
		model:       strings.TrimSpace(cfg.GeminiModel),
		timeout:     time.Duration(timeoutSeconds) * time.Second,
		maxAttempts: maxAttempts,
	}, nil
}

// Advise sends the persona instruction plus the question and returns the raw
// model text. Transient failures are retried with exponential backoff; each
// attempt gets its own timeout.
func (g *GeminiClient) Advise(ctx context.Context, question string) (string, error) {
	full := mungerSystemInstruction + "\n\nUser question:\n" + strings.TrimSpace(question)

	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		resp, err := g.cli.Models.GenerateContent(attemptCtx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
		cancel()

		if err != nil {
			lastErr = err
		} else if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = ErrEmptyResponse
		} else {
			text := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
			if text != "" {
				return text, nil
			}
			lastErr = ErrEmptyResponse
		}

		if ctx.Err() != nil {
			break
		}
		log.Printf("advisor attempt %d/%d failed: %v", attempt+1, g.maxAttempts, lastErr)
		time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
	}
	return "", lastErr
}
