package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"webconferencing/internal/calls"

	"github.com/samber/lo"
)

// Registry maps supported types to providers. The first provider added for
// a type keeps it.
type Registry struct {
	mu     sync.RWMutex
	byType map[string]Provider

	configs ConfigStore
	log     *slog.Logger
}

func NewRegistry(configs ConfigStore, log *slog.Logger) *Registry {
	if configs == nil {
		configs = NewMemoryConfigStore()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{byType: make(map[string]Provider), configs: configs, log: log}
}

// Add registers p for each of its supported types not taken yet.
func (r *Registry) Add(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range lo.Uniq(append([]string{p.Type()}, p.SupportedTypes()...)) {
		if existing, ok := r.byType[t]; ok {
			r.log.Warn("provider type already registered", "type", t, "provider", p.Type(), "registered", existing.Type())
			continue
		}
		r.byType[t] = p
	}
}

func (r *Registry) Get(t string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byType[t]
	return p, ok
}

// Active returns the provider for t if its configuration is active.
func (r *Registry) Active(ctx context.Context, t string) (Provider, bool, error) {
	p, ok := r.Get(t)
	if !ok {
		return nil, false, nil
	}
	cfg, err := r.Configuration(ctx, p.Type())
	if err != nil {
		return nil, false, err
	}
	return p, cfg.Active, nil
}

// ResolveIM asks the active provider of imType for the IM info of imID.
func (r *Registry) ResolveIM(ctx context.Context, imType, imID string) (*calls.IMInfo, error) {
	p, active, err := r.Active(ctx, imType)
	if err != nil || !active {
		return nil, err
	}
	return p.IMInfo(ctx, imID)
}

// Configurations lists one configuration per provider, sorted by type.
func (r *Registry) Configurations(ctx context.Context) ([]Configuration, error) {
	r.mu.RLock()
	types := lo.Uniq(lo.MapToSlice(r.byType, func(_ string, p Provider) string { return p.Type() }))
	r.mu.RUnlock()
	sort.Strings(types)

	out := make([]Configuration, 0, len(types))
	for _, t := range types {
		cfg, err := r.Configuration(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// savedConfiguration is what the config store holds per provider.
type savedConfiguration struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// Configuration returns the saved configuration of provider type t, or the
// default (active) one when nothing was saved.
func (r *Registry) Configuration(ctx context.Context, t string) (Configuration, error) {
	p, ok := r.Get(t)
	if !ok {
		return Configuration{}, fmt.Errorf("%w: %s", ErrUnknownProvider, t)
	}
	cfg := Configuration{Type: p.Type(), Active: true, Title: p.Title(), Description: p.Description()}

	raw, found, err := r.configs.Get(ctx, p.Type())
	if err != nil {
		return Configuration{}, err
	}
	if found {
		var saved savedConfiguration
		if err := json.Unmarshal(raw, &saved); err != nil {
			r.log.Warn("ignoring malformed provider configuration", "type", p.Type(), "error", err)
			return cfg, nil
		}
		cfg.Active = saved.Active
	}
	return cfg, nil
}

func (r *Registry) SaveConfiguration(ctx context.Context, cfg Configuration) (Configuration, error) {
	p, ok := r.Get(cfg.Type)
	if !ok {
		return Configuration{}, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Type)
	}
	raw, err := json.Marshal(savedConfiguration{Type: p.Type(), Active: cfg.Active})
	if err != nil {
		return Configuration{}, err
	}
	if err := r.configs.Put(ctx, p.Type(), raw); err != nil {
		return Configuration{}, err
	}
	r.log.Info("provider configuration saved", "type", p.Type(), "active", cfg.Active)
	return r.Configuration(ctx, p.Type())
}
