package grading

import (
	"context"

	"github.com/saulo-duarte/recrutai-lambda/internal/config"
)

type GradingContainer struct {
	Service Service
}

func NewGradingContainer() *GradingContainer {
	ctx := context.Background()
	provider, err := NewGeminiProvider(ctx)
	if err != nil {
		// The service treats a missing client as a grading failure per
		// answer; everything else keeps working.
		config.Logger.WithError(err).Warn("Gemini client unavailable, answers will stay ungraded")
	}
	service := NewService(provider)

	return &GradingContainer{
		Service: service,
	}
}
