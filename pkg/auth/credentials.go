package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// DefaultAccount names a session stored without an explicit account
const DefaultAccount = "default"

// Session is a saved platform login cookie
type Session struct {
	Platform     string    `json:"platform"`
	Account      string    `json:"account"`
	Cookie       string    `json:"cookie"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
	// VerifiedAt is when the platform last accepted the cookie
	VerifiedAt time.Time `json:"verified_at"`
}

// newer reports whether s is a fresher copy of the same session than other
func (s *Session) newer(other *Session) bool {
	if !s.LastModified.Equal(other.LastModified) {
		return s.LastModified.After(other.LastModified)
	}
	return s.VerifiedAt.After(other.VerifiedAt)
}

// Key identifies a session across stores
func (s *Session) Key() string {
	return sessionKey(s.Platform, s.Account)
}

func sessionKey(platform, account string) string {
	if account == "" {
		account = DefaultAccount
	}
	return platform + ":" + account
}

// CredentialStore is the interface for storing and retrieving sessions
type CredentialStore interface {
	Store(session *Session) error

	// Retrieve gets the session of an account on a platform
	Retrieve(platform, account string) (*Session, error)

	List() ([]*Session, error)

	Delete(platform, account string) error

	Exists(platform, account string) bool
}

// Manager handles session storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager over the keyring, an encrypted file and
// the environment, in that order
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over the given stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the session in the first store that accepts it
func (m *Manager) Store(session *Session) error {
	if session.Platform == "" {
		return errors.New("platform is required")
	}
	if strings.TrimSpace(session.Cookie) == "" {
		return errors.New("session cookie is required")
	}
	if session.Account == "" {
		session.Account = DefaultAccount
	}

	session.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(session); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store session: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets a session from the first store that has it
func (m *Manager) Retrieve(platform, account string) (*Session, error) {
	if account == "" {
		account = DefaultAccount
	}
	for _, store := range m.stores {
		if session, err := store.Retrieve(platform, account); err == nil && session != nil {
			return session, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, sessionKey(platform, account))
}

// RetrieveDefault returns the environment session of platform if set.
// Otherwise it prefers the most recently verified stored session, then the
// most recently saved one.
func (m *Manager) RetrieveDefault(platform string) (*Session, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if session, err := env.Retrieve(platform, ""); err == nil {
				return session, nil
			}
		}
	}

	sessions, err := m.List()
	if err != nil {
		return nil, err
	}

	var best *Session
	for _, s := range sessions {
		if s.Platform != platform {
			continue
		}
		// List is newest first; a later verification wins over it
		if best == nil || s.VerifiedAt.After(best.VerifiedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w for %s", ErrCredentialsNotFound, platform)
	}
	return best, nil
}

// MarkVerified stamps VerifiedAt on every stored copy of the session whose
// cookie matches. It returns ErrCredentialsNotFound when the cookie did
// not come from a writable store.
func (m *Manager) MarkVerified(platform, account, cookie string) error {
	if account == "" {
		account = DefaultAccount
	}

	now := time.Now()
	marked := false
	for _, store := range m.stores {
		if _, ok := store.(*EnvironmentStore); ok {
			continue
		}
		s, err := store.Retrieve(platform, account)
		if err != nil || s.Cookie != cookie {
			continue
		}
		s.VerifiedAt = now
		if err := store.Store(s); err != nil {
			return fmt.Errorf("failed to mark %s verified: %w", s.Key(), err)
		}
		marked = true
	}

	if !marked {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, sessionKey(platform, account))
	}
	return nil
}

// List returns every stored session, newest first. When several stores
// hold the same session the most recently modified copy wins.
func (m *Manager) List() ([]*Session, error) {
	byKey := make(map[string]*Session)

	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			continue
		}
		for _, s := range sessions {
			if existing, ok := byKey[s.Key()]; !ok || s.newer(existing) {
				byKey[s.Key()] = s
			}
		}
	}

	result := make([]*Session, 0, len(byKey))
	for _, s := range byKey {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastModified.Equal(result[j].LastModified) {
			return result[i].LastModified.After(result[j].LastModified)
		}
		return result[i].Key() < result[j].Key()
	})

	return result, nil
}

// Delete removes the session from all stores
func (m *Manager) Delete(platform, account string) error {
	if account == "" {
		account = DefaultAccount
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(platform, account); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, sessionKey(platform, account))
	}
	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "archivist")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "archivist")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "archivist")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "archivist")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeSession returns a copy of the session with the cookie masked
func SanitizeSession(session *Session) *Session {
	if session == nil {
		return nil
	}

	s := *session
	s.Cookie = maskString(session.Cookie)
	return &s
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
