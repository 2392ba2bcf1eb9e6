// mock_storage.go - Recording report saver for testing
package testutil

import (
	"context"
	"errors"
	"sync"
)

// SavedReport is one call recorded by MockSaver.
type SavedReport struct {
	Name        string
	ContentType string
	Data        []byte
}

// MockSaver records every saved report in memory.
type MockSaver struct {
	mu    sync.RWMutex
	saved []SavedReport
	err   error
}

// NewMockSaver creates an empty recording saver.
func NewMockSaver() *MockSaver {
	return &MockSaver{}
}

// FailWith makes subsequent saves return err.
func (m *MockSaver) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockSaver) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.saved = append(m.saved, SavedReport{Name: name, ContentType: contentType, Data: cp})
	return "memory://" + name, nil
}

// Saved returns the recorded reports in save order.
func (m *MockSaver) Saved() []SavedReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SavedReport, len(m.saved))
	copy(out, m.saved)
	return out
}

// Last returns the most recent report.
func (m *MockSaver) Last() (SavedReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.saved) == 0 {
		return SavedReport{}, errors.New("nothing saved")
	}
	return m.saved[len(m.saved)-1], nil
}
