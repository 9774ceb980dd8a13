package llm

import (
	"context"
	"sync"
)

// MockClient is a scriptable Client for tests. Replies are consumed in
// order; when the script runs out the last reply repeats. A non-nil Err
// takes priority over replies.
type MockClient struct {
	mu      sync.Mutex
	replies []string
	err     error
	// Requests records every request received, in order.
	Requests []Request
}

// NewMockClient returns a mock that answers with the given replies in order.
func NewMockClient(replies ...string) *MockClient {
	return &MockClient{replies: replies}
}

// Fail makes every subsequent call return err.
func (m *MockClient) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Recover clears a previous Fail.
func (m *MockClient) Recover() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = nil
}

// Calls reports how many requests the mock has received.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

func (m *MockClient) Complete(_ context.Context, req Request) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.err != nil {
		return nil, m.err
	}

	text := ""
	if len(m.replies) > 0 {
		text = m.replies[0]
		if len(m.replies) > 1 {
			m.replies = m.replies[1:]
		}
	}
	return &Completion{Text: text}, nil
}

var _ Client = (*MockClient)(nil)
