package auth

import (
	"sync"
)

// MockStore implements CredentialStore in memory for tests
type MockStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Session),
	}
}

func (m *MockStore) Store(session *Session) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session == nil || session.Platform == "" {
		return ErrInvalidCredentials
	}

	s := *session
	m.sessions[s.Key()] = &s
	return nil
}

func (m *MockStore) Retrieve(platform, account string) (*Session, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if platform == "" {
		return nil, ErrInvalidCredentials
	}

	session, exists := m.sessions[sessionKey(platform, account)]
	if !exists {
		return nil, ErrCredentialsNotFound
	}

	s := *session
	return &s, nil
}

func (m *MockStore) List() ([]*Session, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []*Session
	for _, session := range m.sessions {
		s := *session
		sessions = append(sessions, &s)
	}
	return sessions, nil
}

func (m *MockStore) Delete(platform, account string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(platform, account)
	if _, exists := m.sessions[key]; !exists {
		return ErrCredentialsNotFound
	}
	delete(m.sessions, key)
	return nil
}

func (m *MockStore) Exists(platform, account string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.sessions[sessionKey(platform, account)]
	return exists
}

// Count returns the number of stored sessions
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// NewMockManager creates a Manager with a mock store for testing
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	return NewManagerWithStores(mockStore), mockStore
}
