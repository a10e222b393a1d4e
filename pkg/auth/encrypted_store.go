package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	vaultVersion   = 2
	saltSize       = 32
	keySize        = 32
	kdfIterations  = 100000
	passphraseEnv  = "ARCHIVIST_PASSPHRASE"
	passphraseName = ".passphrase"
)

// EncryptedFileStore keeps sessions in an AES-GCM sealed file. Every
// platform is sealed on its own with the platform name as additional
// data, so a record moved under another platform fails to open.
type EncryptedFileStore struct {
	path       string
	passphrase string

	mu sync.Mutex
	// key is derived once per salt
	key     []byte
	keySalt string
}

// vault is the file layout
type vault struct {
	Version   int               `json:"version"`
	Salt      string            `json:"salt"`
	Platforms map[string]string `json:"platforms"`
}

// accounts is the plaintext of one sealed platform entry
type accounts map[string]Session

// NewEncryptedFileStore opens the store at path. The file itself is
// created on the first Store.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := loadPassphrase(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

func (e *EncryptedFileStore) Store(session *Session) error {
	if session == nil || session.Platform == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.read()
	if err != nil {
		return err
	}
	entry, err := e.open(v, session.Platform)
	if err != nil {
		return err
	}

	s := *session
	if s.Account == "" {
		s.Account = DefaultAccount
	}
	entry[s.Account] = s

	if err := e.seal(v, session.Platform, entry); err != nil {
		return err
	}
	return e.write(v)
}

func (e *EncryptedFileStore) Retrieve(platform, account string) (*Session, error) {
	if platform == "" {
		return nil, ErrInvalidCredentials
	}
	if account == "" {
		account = DefaultAccount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.read()
	if err != nil {
		return nil, err
	}
	entry, err := e.open(v, platform)
	if err != nil {
		return nil, err
	}

	s, ok := entry[account]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &s, nil
}

// List opens every platform entry. Sessions are ordered by key.
func (e *EncryptedFileStore) List() ([]*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.read()
	if err != nil {
		return nil, err
	}

	sessions := []*Session{}
	for platform := range v.Platforms {
		entry, err := e.open(v, platform)
		if err != nil {
			return nil, err
		}
		for _, s := range entry {
			sessions = append(sessions, &s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Key() < sessions[j].Key() })
	return sessions, nil
}

// Delete removes one account. A platform without accounts is dropped and
// the file is removed once it holds nothing.
func (e *EncryptedFileStore) Delete(platform, account string) error {
	if platform == "" {
		return ErrInvalidCredentials
	}
	if account == "" {
		account = DefaultAccount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.read()
	if err != nil {
		return err
	}
	entry, err := e.open(v, platform)
	if err != nil {
		return err
	}
	if _, ok := entry[account]; !ok {
		return ErrCredentialsNotFound
	}
	delete(entry, account)

	if len(entry) == 0 {
		delete(v.Platforms, platform)
	} else if err := e.seal(v, platform, entry); err != nil {
		return err
	}

	if len(v.Platforms) == 0 {
		return os.Remove(e.path)
	}
	return e.write(v)
}

func (e *EncryptedFileStore) Exists(platform, account string) bool {
	s, err := e.Retrieve(platform, account)
	return err == nil && s != nil
}

// read loads the vault. A missing file is an empty vault.
func (e *EncryptedFileStore) read() (*vault, error) {
	content, err := os.ReadFile(e.path)
	if errors.Is(err, os.ErrNotExist) {
		return &vault{Version: vaultVersion, Platforms: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var v vault
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if v.Version != vaultVersion {
		return nil, fmt.Errorf("unsupported session file version %d", v.Version)
	}
	if v.Platforms == nil {
		v.Platforms = map[string]string{}
	}
	return &v, nil
}

func (e *EncryptedFileStore) write(v *vault) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session file: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return os.Rename(tmp, e.path)
}

// open decrypts the accounts of platform; an absent platform is empty
func (e *EncryptedFileStore) open(v *vault, platform string) (accounts, error) {
	sealed, ok := v.Platforms[platform]
	if !ok {
		return accounts{}, nil
	}

	aead, err := e.sealer(v)
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s sessions: %w", platform, err)
	}
	if len(raw) < aead.NonceSize() {
		return nil, fmt.Errorf("%s sessions are truncated", platform)
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(platform))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s sessions: %w", platform, err)
	}

	var entry accounts
	if err := json.Unmarshal(plain, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse %s sessions: %w", platform, err)
	}
	if entry == nil {
		entry = accounts{}
	}
	return entry, nil
}

func (e *EncryptedFileStore) seal(v *vault, platform string, entry accounts) error {
	aead, err := e.sealer(v)
	if err != nil {
		return err
	}
	plain, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode %s sessions: %w", platform, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	v.Platforms[platform] = base64.StdEncoding.EncodeToString(aead.Seal(nonce, nonce, plain, []byte(platform)))
	return nil
}

// sealer returns the AEAD for the vault's salt, creating the salt on a
// new vault
func (e *EncryptedFileStore) sealer(v *vault) (cipher.AEAD, error) {
	if v.Salt == "" {
		salt := make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		v.Salt = base64.StdEncoding.EncodeToString(salt)
	}

	if e.key == nil || e.keySalt != v.Salt {
		salt, err := base64.StdEncoding.DecodeString(v.Salt)
		if err != nil {
			return nil, fmt.Errorf("failed to decode salt: %w", err)
		}
		e.key = pbkdf2.Key([]byte(e.passphrase), salt, kdfIterations, keySize, sha256.New)
		e.keySalt = v.Salt
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// loadPassphrase reads ARCHIVIST_PASSPHRASE, then the passphrase file in
// dir, generating that file on first use
func loadPassphrase(dir string) (string, error) {
	if pass := os.Getenv(passphraseEnv); pass != "" {
		return pass, nil
	}

	path := filepath.Join(dir, passphraseName)
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)
	if err := os.WriteFile(path, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}
