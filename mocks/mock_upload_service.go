package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ragrace/internal/service"
)

// MockUploadService is a mock implementation of service.UploadService.
type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) Save(ctx context.Context, input service.UploadInput) (*service.UploadedFile, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadedFile), args.Error(1)
}

func (m *MockUploadService) Resolve(fileID string) (string, error) {
	args := m.Called(fileID)
	return args.String(0), args.Error(1)
}
