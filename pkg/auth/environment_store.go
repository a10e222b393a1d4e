package auth

import (
	"os"
	"time"
)

// envCookies maps a platform to the variable holding its session cookie
var envCookies = map[string]string{
	"fanbox":  "FANBOXSESSID",
	"patreon": "PATREON_SESSION",
}

// EnvironmentStore implements CredentialStore over environment variables.
// It is read only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(session *Session) error {
	return ErrStoreUnavailable
}

// Retrieve reads the platform's session variable. The environment holds
// one session per platform, so account only labels the result.
func (e *EnvironmentStore) Retrieve(platform, account string) (*Session, error) {
	name, ok := envCookies[platform]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	cookie := os.Getenv(name)
	if cookie == "" {
		return nil, ErrCredentialsNotFound
	}

	if account == "" {
		account = DefaultAccount
	}

	return &Session{
		Platform:     platform,
		Account:      account,
		Cookie:       cookie,
		UserAgent:    os.Getenv("ARCHIVIST_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

// List returns one session per platform whose variable is set
func (e *EnvironmentStore) List() ([]*Session, error) {
	var sessions []*Session
	for _, platform := range []string{"fanbox", "patreon"} {
		if s, err := e.Retrieve(platform, ""); err == nil {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(platform, account string) error {
	return ErrStoreUnavailable
}

// Exists checks if the platform's variable is set
func (e *EnvironmentStore) Exists(platform, account string) bool {
	name, ok := envCookies[platform]
	return ok && os.Getenv(name) != ""
}
