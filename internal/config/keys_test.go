package config

import (
	"os"
	"testing"
)

// ── MaskKey ──

func TestMaskKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "***"},
		{"short", "***"},
		{"sk-abcdefgh", "sk-...fgh"},
	}
	for _, c := range cases {
		if got := MaskKey(c.in); got != c.want {
			t.Errorf("MaskKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// ── CheckAPIKeys ──

func TestCheckAPIKeysUnset(t *testing.T) {
	os.Unsetenv("SIPBOARD_SUMMARIZER_API_KEY")

	keys := CheckAPIKeys(&Config{})
	if len(keys) != 1 {
		t.Fatalf("got %d key statuses, want 1", len(keys))
	}
	k := keys[0]
	if k.IsSet {
		t.Error("IsSet should be false with no key configured")
	}
	if k.Source != KeySourceNone {
		t.Errorf("Source: got %q, want %q", k.Source, KeySourceNone)
	}
}

func TestCheckAPIKeysFromConfig(t *testing.T) {
	os.Unsetenv("SIPBOARD_SUMMARIZER_API_KEY")

	cfg := &Config{Summarizer: SummarizerConfig{APIKey: "sk-test-123456"}}
	k := CheckAPIKeys(cfg)[0]
	if !k.IsSet {
		t.Error("IsSet should be true")
	}
	if k.Source != KeySourceConfig {
		t.Errorf("Source: got %q, want %q", k.Source, KeySourceConfig)
	}
	if k.Masked != "sk-...456" {
		t.Errorf("Masked: got %q, want %q", k.Masked, "sk-...456")
	}
}

func TestCheckAPIKeysFromEnv(t *testing.T) {
	os.Setenv("SIPBOARD_SUMMARIZER_API_KEY", "sk-env-abcdef")
	defer os.Unsetenv("SIPBOARD_SUMMARIZER_API_KEY")

	cfg := &Config{Summarizer: SummarizerConfig{APIKey: "sk-env-abcdef"}}
	k := CheckAPIKeys(cfg)[0]
	if k.Source != KeySourceEnv {
		t.Errorf("Source: got %q, want %q", k.Source, KeySourceEnv)
	}
}
