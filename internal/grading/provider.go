package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/saulo-duarte/recrutai-lambda/internal/config"
	"google.golang.org/genai"
)

type Provider interface {
	SendPrompt(ctx context.Context, system, user string) (*Result, error)
}

type geminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context) (Provider, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiProvider{client: client}, nil
}

func (p *geminiProvider) SendPrompt(ctx context.Context, system, user string) (*Result, error) {
	log := config.WithContext(ctx)
	prompt := system + "\n\n" + user

	result, err := p.client.Models.GenerateContent(
		ctx,
		"gemini-2.0-flash",
		genai.Text(prompt),
		nil,
	)
	if err != nil {
		log.WithError(err).Error("Gemini content generation failed")
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	raw := result.Text()
	log.Debugf("[GRADING] Raw Gemini response:\n%s", raw)

	graded, err := decodeResult(raw)
	if err != nil {
		log.WithError(err).Errorf("[GRADING] Failed to decode model response:\n%s", raw)
		return nil, err
	}
	return graded, nil
}

// decodeResult parses the model output, tolerating markdown fences, and
// clamps the score into [0, 1].
func decodeResult(raw string) (*Result, error) {
	if raw == "" {
		return nil, errors.New("empty response from model")
	}

	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.Trim(clean, "`")

	var graded Result
	if err := json.Unmarshal([]byte(clean), &graded); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	if graded.Score < 0 {
		graded.Score = 0
	}
	if graded.Score > 1 {
		graded.Score = 1
	}
	return &graded, nil
}
