package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testVerifier(t *testing.T) *Verifier {
	t.Helper()
	pub, err := os.ReadFile(filepath.Clean("testdata/test.pub"))
	if err != nil {
		t.Fatalf("read public key: %v", err)
	}
	v, err := NewVerifier(string(pub))
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func TestLoadVerified(t *testing.T) {
	cfg, err := LoadVerified(context.Background(), filepath.Clean("testdata/netweather.yaml"), testVerifier(t))
	if err != nil {
		t.Fatalf("LoadVerified returned error: %v", err)
	}
	if cfg.WiFi.SSID != "home" || cfg.Strip.LEDs != 8 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("signed fixture should validate: %v", err)
	}
}

func TestLoadVerifiedRejectsTamperedConfig(t *testing.T) {
	data, err := os.ReadFile(filepath.Clean("testdata/netweather.yaml"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	sig, err := os.ReadFile(filepath.Clean("testdata/netweather.yaml.minisig"))
	if err != nil {
		t.Fatalf("read signature: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "netweather.yaml")
	tampered := strings.Replace(string(data), "correct-horse", "attacker-pass", 1)
	if err := os.WriteFile(path, []byte(tampered), 0o600); err != nil {
		t.Fatalf("write tampered config: %v", err)
	}
	if err := os.WriteFile(path+SignatureSuffix, sig, 0o600); err != nil {
		t.Fatalf("write signature: %v", err)
	}

	if _, err := LoadVerified(context.Background(), path, testVerifier(t)); err == nil {
		t.Fatalf("expected verification failure for tampered config")
	}
}

func TestLoadVerifiedRequiresSignature(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	if _, err := LoadVerified(context.Background(), path, testVerifier(t)); err == nil {
		t.Fatalf("expected error for missing signature")
	}
}

func TestNewVerifierAcceptsBareKey(t *testing.T) {
	pub, err := os.ReadFile(filepath.Clean("testdata/test.pub"))
	if err != nil {
		t.Fatalf("read public key: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(pub)), "\n")
	if _, err := NewVerifier(lines[len(lines)-1]); err != nil {
		t.Fatalf("NewVerifier(bare key): %v", err)
	}
	if _, err := NewVerifier("  "); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
