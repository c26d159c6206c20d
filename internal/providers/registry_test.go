package providers

import (
	"context"
	"errors"
	"testing"

	"webconferencing/internal/calls"
)

type stubProvider struct {
	typ   string
	types []string
}

func (p *stubProvider) Type() string             { return p.typ }
func (p *stubProvider) SupportedTypes() []string { return p.types }
func (p *stubProvider) Title() string            { return "Stub " + p.typ }
func (p *stubProvider) Description() string      { return "" }
func (p *stubProvider) IMInfo(_ context.Context, imID string) (*calls.IMInfo, error) {
	return &calls.IMInfo{Type: p.typ, ID: imID}, nil
}

func TestRegistry_FirstProviderKeepsType(t *testing.T) {
	r := NewRegistry(nil, nil)
	first := &stubProvider{typ: "a", types: []string{"a", "shared"}}
	second := &stubProvider{typ: "b", types: []string{"b", "shared"}}
	r.Add(first)
	r.Add(second)

	if p, ok := r.Get("shared"); !ok || p != first {
		t.Fatalf("expected first provider to keep shared type, got %v", p)
	}
	if p, ok := r.Get("b"); !ok || p != second {
		t.Fatalf("expected b registered, got %v", p)
	}
	if _, ok := r.Get("c"); ok {
		t.Fatalf("unexpected provider c")
	}

	cfgs, err := r.Configurations(context.Background())
	if err != nil || len(cfgs) != 2 || cfgs[0].Type != "a" || cfgs[1].Type != "b" {
		t.Fatalf("unexpected configurations: %+v %v", cfgs, err)
	}
}

func TestRegistry_ActiveFlag(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryConfigStore(), nil)
	r.Add(&stubProvider{typ: "sip", types: []string{"sip"}})

	cfg, err := r.Configuration(ctx, "sip")
	if err != nil || !cfg.Active || cfg.Title != "Stub sip" {
		t.Fatalf("expected active by default, got %+v %v", cfg, err)
	}
	info, err := r.ResolveIM(ctx, "sip", "x")
	if err != nil || info == nil {
		t.Fatalf("expected IM resolved, got %v %v", info, err)
	}

	if _, err := r.SaveConfiguration(ctx, Configuration{Type: "sip", Active: false}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, active, _ := r.Active(ctx, "sip"); active {
		t.Fatalf("expected inactive provider")
	}
	if info, err := r.ResolveIM(ctx, "sip", "x"); info != nil || err != nil {
		t.Fatalf("inactive provider must not resolve IMs, got %v %v", info, err)
	}
	if info, err := r.ResolveIM(ctx, "skype", "x"); info != nil || err != nil {
		t.Fatalf("unknown IM type must resolve to nil, got %v %v", info, err)
	}
}

func TestRegistry_SaveUnknownProvider(t *testing.T) {
	r := NewRegistry(nil, nil)
	if _, err := r.SaveConfiguration(context.Background(), Configuration{Type: "nope"}); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected unknown provider, got %v", err)
	}
}

func TestRegistry_MalformedSavedConfigurationFallsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryConfigStore()
	_ = store.Put(ctx, "sip", []byte("{"))
	r := NewRegistry(store, nil)
	r.Add(&stubProvider{typ: "sip"})

	cfg, err := r.Configuration(ctx, "sip")
	if err != nil || !cfg.Active {
		t.Fatalf("expected default configuration, got %+v %v", cfg, err)
	}
}

func TestRegistryImplementsIMResolver(t *testing.T) {
	var _ calls.IMResolver = (*Registry)(nil)
	var _ ConfigStore = (*RedisConfigStore)(nil)
}
