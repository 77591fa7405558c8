package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router manages the configured providers and falls through the chain when
// the default fails.
type Router struct {
	providers map[string]Provider
	order     []string
	defaults  string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates an empty provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register adds a provider. The first registered provider becomes the
// default.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.ID()]; !exists {
		r.order = append(r.order, p.ID())
	}
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault selects the provider tried first.
func (r *Router) SetDefault(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = providerID
}

// Configured reports whether any provider is registered.
func (r *Router) Configured() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// Complete routes a request to the default provider, falling through the
// remaining providers in registration order on error.
func (r *Router) Complete(ctx context.Context, req *Request) (*Response, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.providers) == 0 {
		return nil, fmt.Errorf("no language-model provider configured")
	}

	var lastErr error
	for _, id := range r.tryOrder() {
		p := r.providers[id]
		resp, err := p.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		r.logger.Warn("provider failed, trying next",
			zap.String("provider", id), zap.Error(err))
	}
	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// tryOrder lists provider ids starting with the default. Callers hold r.mu.
func (r *Router) tryOrder() []string {
	order := make([]string, 0, len(r.order))
	if _, ok := r.providers[r.defaults]; ok {
		order = append(order, r.defaults)
	}
	for _, id := range r.order {
		if id != r.defaults {
			order = append(order, id)
		}
	}
	return order
}
