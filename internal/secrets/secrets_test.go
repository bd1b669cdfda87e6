package secrets

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestBox_SealOpen(t *testing.T) {
	box, err := NewBox(testKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	creds := []byte(`{"api_url":"https://cms.example/api","token":"t"}`)
	sealed, err := box.Seal(creds)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(opened) != string(creds) {
		t.Errorf("roundtrip mismatch: %q", opened)
	}
}

func TestBox_OpenWrongKey(t *testing.T) {
	box, _ := NewBox(testKey)
	sealed, _ := box.Seal([]byte("secret"))

	other, _ := NewBox(strings.Repeat("ab", 32))
	if _, err := other.Open(sealed); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("expected ErrOpenFailed, got %v", err)
	}
}

func TestBox_OpenGarbage(t *testing.T) {
	box, _ := NewBox(testKey)

	for _, sealed := range []string{"", "not base64 !!!", "AAAA"} {
		if _, err := box.Open(sealed); !errors.Is(err, ErrOpenFailed) {
			t.Errorf("Open(%q): expected ErrOpenFailed, got %v", sealed, err)
		}
	}
}

func TestNewBox_BadKey(t *testing.T) {
	for _, key := range []string{"", "zz", "abcd"} {
		if _, err := NewBox(key); !errors.Is(err, ErrBadKey) {
			t.Errorf("NewBox(%q): expected ErrBadKey, got %v", key, err)
		}
	}
}
