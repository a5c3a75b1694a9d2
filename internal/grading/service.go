package grading

import (
	"context"
	"errors"
	"os"
	"time"
)

const defaultTimeout = 30 * time.Second

// ErrNoProvider is returned when the model client could not be built at
// startup. Callers already treat grading errors as a missing score.
var ErrNoProvider = errors.New("grading provider unavailable")

type Service interface {
	GradeAnswer(ctx context.Context, req GradeRequest) (*Result, error)
}

type service struct {
	provider Provider
	timeout  time.Duration
}

func NewService(provider Provider) Service {
	timeout := defaultTimeout
	if v := os.Getenv("GRADING_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			timeout = parsed
		}
	}
	return &service{provider: provider, timeout: timeout}
}

// GradeAnswer calls the model with an upper bound. Callers treat failures
// as a missing score, never as a failure of the transition that triggered
// the grading.
func (s *service) GradeAnswer(ctx context.Context, req GradeRequest) (*Result, error) {
	if s.provider == nil {
		return nil, ErrNoProvider
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	system := systemPrompt
	user := BuildUserPrompt(req)

	return s.provider.SendPrompt(ctx, system, user)
}
