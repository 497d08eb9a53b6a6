package anthropic

// Test doubles shared across this package's tests.

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a testify mock over the Client interface.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func (m *MockClient) CreateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BatchResponse), args.Error(1)
}

func (m *MockClient) GetBatch(ctx context.Context, batchID string) (*BatchResponse, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BatchResponse), args.Error(1)
}

func (m *MockClient) GetBatchResults(ctx context.Context, batchID string) (BatchResultIterator, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(BatchResultIterator), args.Error(1)
}

// mockResultIterator yields a fixed slice of items, optionally ending with
// an error once the slice is exhausted.
type mockResultIterator struct {
	items []BatchResultItem
	idx   int
	err   error
}

func newMockResultIterator(items []BatchResultItem) *mockResultIterator {
	return &mockResultIterator{items: items, idx: -1}
}

func newMockResultIteratorWithError(items []BatchResultItem, err error) *mockResultIterator {
	return &mockResultIterator{items: items, idx: -1, err: err}
}

func (m *mockResultIterator) Next() bool {
	if m.idx+1 < len(m.items) {
		m.idx++
		return true
	}
	return false
}

func (m *mockResultIterator) Item() BatchResultItem {
	return m.items[m.idx]
}

func (m *mockResultIterator) Err() error {
	if m.idx+1 >= len(m.items) {
		return m.err
	}
	return nil
}

func (m *mockResultIterator) Close() error {
	return nil
}
