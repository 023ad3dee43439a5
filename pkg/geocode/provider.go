package geocode

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, query string) (*Result, error)
	Available() bool
}

// CascadeClient tries geocode providers in order until one matches.
type CascadeClient struct {
	providers []Provider
}

// NewCascadeClient creates a CascadeClient that tries providers in order.
func NewCascadeClient(providers ...Provider) *CascadeClient {
	return &CascadeClient{providers: providers}
}

// Providers returns the provider names in cascade order.
func (c *CascadeClient) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Geocode implements Client by trying each provider in order. Provider errors
// fall through to the next provider; if every provider failed with an error
// the last error is returned, otherwise an unmatched result.
func (c *CascadeClient) Geocode(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &Result{Matched: false, Source: "cascade"}, nil
	}

	var lastErr error
	var missed bool
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Geocode(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "geocode: cascade")
			}
			zap.L().Debug("cascade: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		if result != nil && result.Matched {
			return result, nil
		}
		missed = true
	}

	if lastErr != nil && !missed {
		return nil, eris.Wrap(lastErr, "geocode: all providers failed")
	}
	return &Result{Matched: false, Source: "cascade"}, nil
}
