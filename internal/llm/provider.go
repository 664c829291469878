// Package llm models text generation as an explicit ordered list of provider
// adapters. Every adapter collapses its provider-specific response shape to a
// plain string at the boundary; the chain tries adapters in configuration
// order and falls through on failure.
package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-chat/atlas/internal/domain"
	"github.com/atlas-chat/atlas/internal/metrics"
)

// Options control one generation call.
type Options struct {
	System      string
	Temperature float32
	MaxTokens   int
}

// Provider is one text-generation adapter.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Chain tries providers in order until one succeeds.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
}

// NewChain creates a fallback chain. Order matters: the first provider is
// the primary, the rest are fallbacks.
func NewChain(providers []Provider, logger *zap.Logger) *Chain {
	return &Chain{providers: providers, logger: logger}
}

// Generate returns the first successful provider response. When every
// provider fails, the error wraps domain.ErrGenerationFailed together with
// the last provider error.
func (c *Chain) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if len(c.providers) == 0 {
		return "", fmt.Errorf("%w: no providers configured", domain.ErrGenerationFailed)
	}

	var lastErr error
	for _, p := range c.providers {
		start := time.Now()
		text, err := p.Generate(ctx, prompt, opts)
		duration := time.Since(start)

		if err != nil {
			metrics.GenerationRequestsTotal.WithLabelValues(p.Name(), "error").Inc()
			c.logger.Warn("generation provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err))
			lastErr = err
			continue
		}

		metrics.GenerationRequestsTotal.WithLabelValues(p.Name(), "success").Inc()
		metrics.GenerationRequestDuration.WithLabelValues(p.Name()).Observe(duration.Seconds())
		return text, nil
	}

	return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, lastErr)
}
