package mocks

import (
	"context"
	"time"

	"essync/core/search"

	"github.com/stretchr/testify/mock"
)

// Sink is a mock implementation of search.Sink
type Sink struct {
	mock.Mock
}

func (m *Sink) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Sink) Index(ctx context.Context, index, docType, id string, body any) error {
	args := m.Called(ctx, index, docType, id, body)
	return args.Error(0)
}

func (m *Sink) Delete(ctx context.Context, index, docType, id string) error {
	args := m.Called(ctx, index, docType, id)
	return args.Error(0)
}

func (m *Sink) Bulk(ctx context.Context, ops []search.Operation, refresh bool) ([]search.ItemResult, error) {
	args := m.Called(ctx, ops, refresh)
	if results, ok := args.Get(0).([]search.ItemResult); ok {
		return results, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Sink) Scroll(ctx context.Context, index, docType string, size int, keepAlive time.Duration) (search.ScrollPage, error) {
	args := m.Called(ctx, index, docType, size, keepAlive)
	return args.Get(0).(search.ScrollPage), args.Error(1)
}

func (m *Sink) ScrollNext(ctx context.Context, scrollID string, keepAlive time.Duration) (search.ScrollPage, error) {
	args := m.Called(ctx, scrollID, keepAlive)
	return args.Get(0).(search.ScrollPage), args.Error(1)
}

func (m *Sink) ClearScroll(ctx context.Context, scrollID string) error {
	args := m.Called(ctx, scrollID)
	return args.Error(0)
}

func (m *Sink) DeleteIndex(ctx context.Context, index string) error {
	args := m.Called(ctx, index)
	return args.Error(0)
}

func (m *Sink) Close() error {
	args := m.Called()
	return args.Error(0)
}
