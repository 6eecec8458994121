package keys

import (
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDirectory_Lookup(t *testing.T) {
	id, _, _ := GenerateEd25519Identity(rand.Reader)
	d, err := NewDirectory(map[int64]string{7: id.PublicKeyString()})
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	pub, err := d.PublicKey(7)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	if pub != id.PublicKeyString() {
		t.Fatalf("wrong key returned")
	}
	if _, err := d.PublicKey(8); !errors.Is(err, ErrUnknownMiner) {
		t.Fatalf("expected ErrUnknownMiner, got %v", err)
	}
	if d.Len() != 1 {
		t.Fatalf("Len = %d, want 1", d.Len())
	}
}

func TestNewDirectory_RejectsBadBindings(t *testing.T) {
	id, _, _ := GenerateEd25519Identity(rand.Reader)
	if _, err := NewDirectory(map[int64]string{0: id.PublicKeyString()}); err == nil {
		t.Fatalf("expected error for non-positive miner id")
	}
	if _, err := NewDirectory(map[int64]string{1: "not-a-key"}); err == nil {
		t.Fatalf("expected error for malformed public key")
	}
}

func TestLoadDirectory(t *testing.T) {
	id, _, _ := GenerateEd25519Identity(rand.Reader)
	path := filepath.Join(t.TempDir(), "registry.json")
	content := `{"1": "` + id.PublicKeyString() + `"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := LoadDirectory(path)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if _, err := d.PublicKey(1); err != nil {
		t.Fatalf("PublicKey: %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"x": "ed25519:AAAA"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDirectory(bad); err == nil {
		t.Fatalf("expected error for non-numeric miner id")
	}
}

func TestDirectory_NilSafe(t *testing.T) {
	var d *Directory
	if _, err := d.PublicKey(1); !errors.Is(err, ErrUnknownMiner) {
		t.Fatalf("expected ErrUnknownMiner on nil directory, got %v", err)
	}
	if d.Len() != 0 {
		t.Fatalf("nil directory Len != 0")
	}
}
