package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// PendingStore is the device-local slot that remembers which address a magic
// link was sent to, so the completing page need not ask for it again.
type PendingStore interface {
	PendingEmail() (string, error)
	SetPendingEmail(email string) error
	ClearPendingEmail() error
}

// CredentialStore keeps the signed-in session credential between runs.
type CredentialStore interface {
	Credential() (string, error)
	SetCredential(token string) error
	ClearCredential() error
}

// State is both slots together.
type State interface {
	PendingStore
	CredentialStore
}

// MemoryState keeps both slots in memory.
type MemoryState struct {
	mu         sync.Mutex
	email      string
	credential string
}

func NewMemoryState() *MemoryState {
	return &MemoryState{}
}

func (m *MemoryState) PendingEmail() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.email, nil
}

func (m *MemoryState) SetPendingEmail(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.email = email
	return nil
}

func (m *MemoryState) ClearPendingEmail() error {
	return m.SetPendingEmail("")
}

func (m *MemoryState) Credential() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credential, nil
}

func (m *MemoryState) SetCredential(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = token
	return nil
}

func (m *MemoryState) ClearCredential() error {
	return m.SetCredential("")
}

type stateFile struct {
	PendingEmail string `json:"pendingEmail,omitempty"`
	Credential   string `json:"credential,omitempty"`
}

// FileState persists both slots as a small JSON file, by default under the
// user's home directory.
type FileState struct {
	mu   sync.Mutex
	path string
}

func NewFileState(path string) *FileState {
	return &FileState{path: path}
}

// DefaultStatePath returns ~/.progress-widgets/session.json.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".progress-widgets", "session.json"), nil
}

func (f *FileState) load() (stateFile, error) {
	var s stateFile
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read state file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("decode state file: %w", err)
	}
	return s, nil
}

func (f *FileState) save(s stateFile) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *FileState) update(fn func(*stateFile)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.load()
	if err != nil {
		return err
	}
	fn(&s)
	return f.save(s)
}

func (f *FileState) PendingEmail() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.load()
	return s.PendingEmail, err
}

func (f *FileState) SetPendingEmail(email string) error {
	return f.update(func(s *stateFile) { s.PendingEmail = email })
}

func (f *FileState) ClearPendingEmail() error {
	return f.SetPendingEmail("")
}

func (f *FileState) Credential() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.load()
	return s.Credential, err
}

func (f *FileState) SetCredential(token string) error {
	return f.update(func(s *stateFile) { s.Credential = token })
}

func (f *FileState) ClearCredential() error {
	return f.SetCredential("")
}
