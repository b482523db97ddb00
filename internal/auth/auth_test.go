package auth

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestNewCredentials(t *testing.T) {
	t.Run("valid pair", func(t *testing.T) {
		creds, err := NewCredentials("key-id", "secret")
		if err != nil {
			t.Fatalf("NewCredentials failed: %v", err)
		}
		if creds.Key != "key-id" {
			t.Errorf("Key = %q, want %q", creds.Key, "key-id")
		}
		if creds.Secret != "secret" {
			t.Errorf("Secret = %q, want %q", creds.Secret, "secret")
		}
	})

	t.Run("missing key", func(t *testing.T) {
		if _, err := NewCredentials("", "secret"); err == nil {
			t.Error("expected error for empty key, got nil")
		}
	})

	t.Run("missing secret", func(t *testing.T) {
		if _, err := NewCredentials("key-id", ""); err == nil {
			t.Error("expected error for empty secret, got nil")
		}
	})
}

func TestCredentials_AuthorizationHeader(t *testing.T) {
	creds := &Credentials{Key: "my-key", Secret: "my-secret"}

	header := creds.AuthorizationHeader()
	if !strings.HasPrefix(header, "Basic ") {
		t.Fatalf("header = %q, want Basic prefix", header)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		t.Fatalf("header payload is not valid base64: %v", err)
	}
	if string(decoded) != "my-key:my-secret" {
		t.Errorf("decoded payload = %q, want %q", decoded, "my-key:my-secret")
	}
}

func TestCredentials_Headers(t *testing.T) {
	creds := &Credentials{Key: "k", Secret: "s"}

	headers := creds.Headers()
	if headers["Authorization"] != creds.AuthorizationHeader() {
		t.Errorf("Authorization = %q, want %q", headers["Authorization"], creds.AuthorizationHeader())
	}
	if headers["Accept"] != "application/json" {
		t.Errorf("Accept = %q, want %q", headers["Accept"], "application/json")
	}
}
