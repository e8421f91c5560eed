package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockPageExtractor is a mock implementation of port.PageExtractor.
type MockPageExtractor struct {
	mock.Mock
}

func (m *MockPageExtractor) PageCount(ctx context.Context, path string) (int, error) {
	args := m.Called(ctx, path)
	return args.Int(0), args.Error(1)
}

func (m *MockPageExtractor) ExtractPage(ctx context.Context, path string, page int) (string, error) {
	args := m.Called(ctx, path, page)
	return args.String(0), args.Error(1)
}
