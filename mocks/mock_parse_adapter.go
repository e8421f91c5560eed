package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ragrace/internal/domain"
	"ragrace/internal/port"
)

// MockParseAdapter is a mock implementation of port.ParseAdapter.
type MockParseAdapter struct {
	mock.Mock
}

func (m *MockParseAdapter) Provider() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockParseAdapter) Parse(ctx context.Context, artifactPath string) (*domain.ParseResult, error) {
	args := m.Called(ctx, artifactPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ParseResult), args.Error(1)
}

// MockAdapterFactory is a mock implementation of service.AdapterFactory.
type MockAdapterFactory struct {
	mock.Mock
}

func (m *MockAdapterFactory) NewAdapter(name string, overrides map[string]any) (port.ParseAdapter, error) {
	args := m.Called(name, overrides)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(port.ParseAdapter), args.Error(1)
}

func (m *MockAdapterFactory) Providers() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *MockAdapterFactory) Configured(name string) bool {
	args := m.Called(name)
	return args.Bool(0)
}
