package services

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MockStorage is an in-memory ObjectStorage for testing
type MockStorage struct {
	objects map[string][]byte
	types   map[string]string
	err     error
	mu      sync.RWMutex
}

// NewMockStorage creates an empty mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// SetAsMockForTesting sets this mock as the global storage backend
func (m *MockStorage) SetAsMockForTesting() {
	SetStorage(m)
}

// FailWith makes Put return err until cleared with nil
func (m *MockStorage) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Put stores the object in memory
func (m *MockStorage) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	m.mu.RLock()
	failure := m.err
	m.mu.RUnlock()
	if failure != nil {
		return failure
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}

	m.mu.Lock()
	m.objects[key] = content
	m.types[key] = contentType
	m.mu.Unlock()
	return nil
}

// Delete removes the object from memory
func (m *MockStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	delete(m.types, key)
	m.mu.Unlock()
	return nil
}

// PublicURL returns a fake bucket URL for key
func (m *MockStorage) PublicURL(key string) string {
	return "https://test-bucket.s3.ap-southeast-2.amazonaws.com/" + key
}

// Objects returns a copy of every stored object
func (m *MockStorage) Objects() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(m.objects))
	for k, v := range m.objects {
		out[k] = v
	}
	return out
}

// ContentType returns the stored content type of key
func (m *MockStorage) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[key]
}

// Clear removes every object
func (m *MockStorage) Clear() {
	m.mu.Lock()
	m.objects = make(map[string][]byte)
	m.types = make(map[string]string)
	m.mu.Unlock()
}
