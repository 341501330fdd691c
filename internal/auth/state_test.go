package auth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	s := NewFileState(path)
	if email, err := s.PendingEmail(); err != nil || email != "" {
		t.Fatalf("fresh state = %q, %v", email, err)
	}
	if err := s.SetPendingEmail("a@b.com"); err != nil {
		t.Fatalf("set pending: %v", err)
	}
	if err := s.SetCredential("tok"); err != nil {
		t.Fatalf("set credential: %v", err)
	}

	reopened := NewFileState(path)
	email, _ := reopened.PendingEmail()
	cred, _ := reopened.Credential()
	if email != "a@b.com" || cred != "tok" {
		t.Fatalf("reopened state = %q, %q", email, cred)
	}

	if err := reopened.ClearPendingEmail(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	email, _ = s.PendingEmail()
	cred, _ = s.Credential()
	if email != "" || cred != "tok" {
		t.Fatalf("clearing the email must keep the credential: %q, %q", email, cred)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("state file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestFileStateCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileState(path).Credential(); err == nil {
		t.Fatal("expected decode error")
	}
}
