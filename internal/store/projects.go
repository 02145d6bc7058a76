package store

import (
	"context"

	"go.uber.org/zap"
)

// Projects holds one Store per configured project name and reports which
// are currently healthy.
type Projects struct {
	byName map[string]Store
	logger *zap.Logger
}

// NewProjects wraps the given stores (already retry-wrapped by the caller)
// into a Projects registry keyed by their own ProjectName.
func NewProjects(stores []Store, logger *zap.Logger) *Projects {
	byName := make(map[string]Store, len(stores))
	for _, s := range stores {
		byName[s.ProjectName()] = s
	}
	return &Projects{byName: byName, logger: logger}
}

// All returns every configured store, regardless of health.
func (p *Projects) All() []Store {
	out := make([]Store, 0, len(p.byName))
	for _, s := range p.byName {
		out = append(out, s)
	}
	return out
}

// Healthy returns the subset of stores that currently respond to Ping.
func (p *Projects) Healthy(ctx context.Context) []Store {
	var out []Store
	for name, s := range p.byName {
		if err := s.Ping(ctx); err != nil {
			if p.logger != nil {
				p.logger.Warn("store: project unhealthy, skipping this cycle",
					zap.String("project", name), zap.Error(err))
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// Get returns the store for a project name, if configured.
func (p *Projects) Get(name string) (Store, bool) {
	s, ok := p.byName[name]
	return s, ok
}

// CloseAll closes every configured store.
func (p *Projects) CloseAll() {
	for _, s := range p.byName {
		s.Close()
	}
}
