package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Chain tries providers in order until one synthesizes the phrase. A
// provider that fails authentication is benched for the life of the chain.
type Chain struct {
	providers []Provider
	logger    *slog.Logger

	mu      sync.Mutex
	benched map[int]error
}

// NewChain needs at least one provider.
func NewChain(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "tts.chain"),
		benched:   make(map[int]error),
	}, nil
}

// Synthesize returns the first success, or a ChainError listing every
// failure. Cancellation stops the chain immediately.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var errs []error
	for i, p := range c.providers {
		if err := c.benchedErr(i); err != nil {
			errs = append(errs, err)
			continue
		}

		result, err := p.Synthesize(ctx, text)
		if err == nil {
			if len(errs) > 0 {
				c.logger.Info("fallback provider used", "provider", providerName(p))
			}
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		errs = append(errs, err)
		if IsAuth(err) {
			c.bench(i, err)
			c.logger.Error("provider disabled", "provider", providerName(p), "error", err)
			continue
		}
		c.logger.Warn("provider failed", "provider", providerName(p), "error", err)
	}
	return nil, &ChainError{Errors: errs}
}

func (c *Chain) benchedErr(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.benched[i]
}

func (c *Chain) bench(i int, err error) {
	c.mu.Lock()
	c.benched[i] = err
	c.mu.Unlock()
}

// Health succeeds when any provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var errs []error
	for _, p := range c.providers {
		err := p.Health(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("tts chain: no healthy provider: %w", errors.Join(errs...))
}

// Close closes every provider.
func (c *Chain) Close() error {
	var errs []error
	for _, p := range c.providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// Name returns "chain".
func (c *Chain) Name() string { return "chain" }

// ChainError holds one error per provider, in chain order.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("tts chain: %d providers failed: %v", len(e.Errors), errors.Join(e.Errors...))
}

// Unwrap exposes every provider error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error { return e.Errors }

var _ Provider = (*Chain)(nil)
