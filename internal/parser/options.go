package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ragrace/internal/config"
	"ragrace/internal/domain"
)

const defaultTimeout = 300 * time.Second

// Timeout returns the per-call timeout for a provider config.
func Timeout(cfg *config.ProviderConfig) time.Duration {
	if cfg.TimeoutSecs <= 0 {
		return defaultTimeout
	}
	return time.Duration(cfg.TimeoutSecs) * time.Second
}

// OptString reads a string option, falling back to def when unset or blank.
func OptString(cfg *config.ProviderConfig, key, def string) string {
	v, ok := cfg.Options[key]
	if !ok || v == nil {
		return def
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return def
	}
	return s
}

// OptBool reads a boolean option. Strings such as "true" or "1" are accepted.
func OptBool(cfg *config.ProviderConfig, key string, def bool) (bool, error) {
	v, ok := cfg.Options[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		if strings.TrimSpace(b) == "" {
			return def, nil
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return def, fmt.Errorf("%w: %s must be a boolean, got %q", domain.ErrInvalidProviderConfig, key, b)
		}
		return parsed, nil
	default:
		return def, fmt.Errorf("%w: %s must be a boolean", domain.ErrInvalidProviderConfig, key)
	}
}

// OptOneOf reads a string option and validates it against allowed values.
func OptOneOf(cfg *config.ProviderConfig, key, def string, allowed ...string) (string, error) {
	s := OptString(cfg, key, def)
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %s must be one of %s, got %q",
		domain.ErrInvalidProviderConfig, key, strings.Join(allowed, "|"), s)
}
