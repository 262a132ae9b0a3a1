package security

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadPEM_InlinePEM(t *testing.T) {
	pemBytes, err := LoadPEM(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("LoadPEM: %v", err)
	}
	if !strings.Contains(string(pemBytes), "-----BEGIN") {
		t.Error("LoadPEM did not return PEM content")
	}
}

func TestLoadPEM_ExpandsLiteralNewlines(t *testing.T) {
	escaped := strings.ReplaceAll(testPublicKeyPEM, "\n", `\n`)
	if _, err := ParsePublicKey(escaped); err != nil {
		t.Fatalf("ParsePublicKey with escaped newlines: %v", err)
	}
}

func TestLoadPEM_FilePath(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test.pem")
	if err := os.WriteFile(tmpFile, []byte(testPrivateKeyPEM), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ParsePrivateKey(tmpFile); err != nil {
		t.Fatalf("ParsePrivateKey from file: %v", err)
	}
}

func TestLoadPEM_Invalid(t *testing.T) {
	for _, s := range []string{"", "   "} {
		if _, err := LoadPEM(s); err != ErrInvalidKey {
			t.Errorf("LoadPEM(%q): want ErrInvalidKey, got %v", s, err)
		}
	}
	if _, err := LoadPEM("/nonexistent/key.pem"); err == nil {
		t.Error("LoadPEM with missing file should fail")
	}
}

func TestParseKeys_WrongBlockType(t *testing.T) {
	if _, err := ParsePrivateKey(testPublicKeyPEM); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("ParsePrivateKey(public): want ErrInvalidKey, got %v", err)
	}
	if _, err := ParsePublicKey(testPrivateKeyPEM); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("ParsePublicKey(private): want ErrInvalidKey, got %v", err)
	}
	if _, err := ParsePrivateKey("-----BEGIN GARBAGE-----"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("ParsePrivateKey(garbage): want ErrInvalidKey, got %v", err)
	}
}

func TestNewTokenProvider_Selection(t *testing.T) {
	if _, err := NewTokenProvider("", "", "", "iss", time.Hour); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("no material: want ErrInvalidKey, got %v", err)
	}
	p, err := NewTokenProvider("secret", "", "", "iss", time.Hour)
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	if p.method.Alg() != "HS256" {
		t.Errorf("alg = %s, want HS256", p.method.Alg())
	}
	p, err = NewTokenProvider("secret", testPrivateKeyPEM, testPublicKeyPEM, "iss", time.Hour)
	if err != nil {
		t.Fatalf("key pair: %v", err)
	}
	if p.method.Alg() != "RS256" {
		t.Errorf("alg = %s, want RS256 when a key pair is configured", p.method.Alg())
	}
}
