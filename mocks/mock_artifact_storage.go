package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockArtifactStorage is a mock implementation of port.ArtifactStorage.
type MockArtifactStorage struct {
	mock.Mock
}

func (m *MockArtifactStorage) Upload(ctx context.Context, localPath, key string) (string, error) {
	args := m.Called(ctx, localPath, key)
	return args.String(0), args.Error(1)
}

func (m *MockArtifactStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockArtifactStorage) DownloadToTemp(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}
