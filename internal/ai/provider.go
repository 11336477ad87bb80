package ai

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// Provider is a stateless text-generation capability: one prompt in, one
// reply out. Implementations may fail or return empty output; callers that
// talk to the end user must go through Safe.
type Provider interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// DefaultFallback is the in-character reply used whenever generation is
// unavailable. It must never expose the underlying error to the child.
const DefaultFallback = "¡Vaya! No puedo responder ahora. ¿Quieres contarme más?"

// Safe wraps a Provider with the fallback contract: it never returns an
// error and never returns empty text.
type Safe struct {
	Provider Provider
	Fallback string
}

func NewSafe(p Provider) *Safe {
	return &Safe{Provider: p, Fallback: DefaultFallback}
}

func (s *Safe) Ask(ctx context.Context, prompt string) string {
	out, err := s.Provider.Ask(ctx, prompt)
	if err != nil {
		logrus.WithError(err).Warn("generation unavailable, using fallback")
		return s.fallback()
	}
	out = strings.TrimSpace(out)
	if out == "" {
		logrus.Warn("generation returned empty output, using fallback")
		return s.fallback()
	}
	return out
}

// TryAsk exposes the raw result for callers that have their own recovery
// (classifiers fall back to neutral defaults instead of fallback text).
func (s *Safe) TryAsk(ctx context.Context, prompt string) (string, error) {
	return s.Provider.Ask(ctx, prompt)
}

func (s *Safe) fallback() string {
	if s.Fallback != "" {
		return s.Fallback
	}
	return DefaultFallback
}
