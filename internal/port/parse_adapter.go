package port

import (
	"context"

	"ragrace/internal/domain"
)

// ParseAdapter is the uniform contract every provider backend implements.
type ParseAdapter interface {
	Provider() string
	Parse(ctx context.Context, artifactPath string) (*domain.ParseResult, error)
}
