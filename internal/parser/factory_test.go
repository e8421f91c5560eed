package parser_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragrace/internal/config"
	"ragrace/internal/domain"
	"ragrace/internal/parser"
	"ragrace/internal/port"
)

// stubAdapter is a minimal ParseAdapter for testing the registry.
type stubAdapter struct {
	cfg *config.ProviderConfig
}

func (s *stubAdapter) Provider() string { return s.cfg.Provider }

func (s *stubAdapter) Parse(_ context.Context, _ string) (*domain.ParseResult, error) {
	return domain.NewParseResult(s.cfg.Provider, nil, 0, nil, nil), nil
}

func stubFactory(cfg *config.ProviderConfig) (port.ParseAdapter, error) {
	return &stubAdapter{cfg: cfg}, nil
}

func TestRegistry_NewAdapter_MergesOverrides(t *testing.T) {
	reg := parser.NewRegistry(map[string]*config.ProviderConfig{
		"stub": {Provider: "stub", APIKey: "k", Options: map[string]any{"mode": "standard", "keep": "yes"}},
	})
	reg.Register("stub", stubFactory)

	adapter, err := reg.NewAdapter("stub", map[string]any{"mode": "complex"})
	require.NoError(t, err)

	stub := adapter.(*stubAdapter)
	assert.Equal(t, "complex", stub.cfg.Options["mode"])
	assert.Equal(t, "yes", stub.cfg.Options["keep"])
}

func TestRegistry_UnknownProvider(t *testing.T) {
	reg := parser.NewRegistry(nil)

	adapter, err := reg.NewAdapter("nonexistent-provider-xyz", nil)

	assert.Nil(t, adapter)
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestRegistry_MissingAPIKey(t *testing.T) {
	reg := parser.NewRegistry(map[string]*config.ProviderConfig{"stub": {Provider: "stub"}})
	reg.Register("stub", stubFactory)

	_, err := reg.NewAdapter("stub", nil)

	assert.ErrorIs(t, err, domain.ErrProviderNotConfigured)
	assert.False(t, reg.Configured("stub"))
}

func TestRegistry_Providers(t *testing.T) {
	reg := parser.NewRegistry(map[string]*config.ProviderConfig{"b": {APIKey: "k"}})
	reg.Register("b", stubFactory)
	reg.Register("a", stubFactory)

	assert.Equal(t, []string{"a", "b"}, reg.Providers())
	assert.True(t, reg.Configured("b"))
	assert.False(t, reg.Configured("a"))
}

func TestOptions(t *testing.T) {
	cfg := &config.ProviderConfig{Options: map[string]any{
		"flag":  "true",
		"bad":   "nah",
		"blank": "  ",
		"mode":  "fast",
	}}

	b, err := parser.OptBool(cfg, "flag", false)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = parser.OptBool(cfg, "bad", false)
	assert.ErrorIs(t, err, domain.ErrInvalidProviderConfig)

	assert.Equal(t, "dflt", parser.OptString(cfg, "blank", "dflt"))

	mode, err := parser.OptOneOf(cfg, "mode", "auto", "fast", "auto")
	require.NoError(t, err)
	assert.Equal(t, "fast", mode)

	assert.Equal(t, 300.0, parser.Timeout(cfg).Seconds())
}
