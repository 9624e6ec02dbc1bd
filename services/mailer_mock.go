package services

import (
	"context"
	"sync"
)

// MockMailer records emails instead of sending them
type MockMailer struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

// NewMockMailer creates an empty mock mailer
func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

// FailWith makes every subsequent Send return err
func (m *MockMailer) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Send records email, or returns the configured failure
func (m *MockMailer) Send(_ context.Context, email Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

// Sent returns a copy of every recorded email
func (m *MockMailer) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.sent))
	copy(out, m.sent)
	return out
}

// Clear forgets every recorded email
func (m *MockMailer) Clear() {
	m.mu.Lock()
	m.sent = nil
	m.mu.Unlock()
}
