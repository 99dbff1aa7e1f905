package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	data := "UAC_TEST_RATE=44100\nUAC_TEST_PRESET=fromfile\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("UAC_TEST_PRESET", "fromenv")
	os.Unsetenv("UAC_TEST_RATE")
	defer os.Unsetenv("UAC_TEST_RATE")

	if err := Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := Uint("UAC_TEST_RATE", 48000); got != 44100 {
		t.Errorf("Uint(UAC_TEST_RATE) = %d, want 44100", got)
	}
	if got := String("UAC_TEST_PRESET", ""); got != "fromenv" {
		t.Errorf("String(UAC_TEST_PRESET) = %q, want existing value", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("Load(missing) error = %v, want nil", err)
	}
}

func TestGetters(t *testing.T) {
	t.Setenv("UAC_TEST_INT", "-3")
	t.Setenv("UAC_TEST_UINT", "0x10")
	t.Setenv("UAC_TEST_BOOL", "true")
	t.Setenv("UAC_TEST_DUR", "250ms")
	t.Setenv("UAC_TEST_BAD", "nope")

	if got := Int("UAC_TEST_INT", 0); got != -3 {
		t.Errorf("Int() = %d, want -3", got)
	}
	if got := Uint("UAC_TEST_UINT", 0); got != 16 {
		t.Errorf("Uint() = %d, want 16", got)
	}
	if got := Bool("UAC_TEST_BOOL", false); !got {
		t.Error("Bool() = false, want true")
	}
	if got := Duration("UAC_TEST_DUR", 0); got != 250*time.Millisecond {
		t.Errorf("Duration() = %v, want 250ms", got)
	}
	if got := Int("UAC_TEST_BAD", 7); got != 7 {
		t.Errorf("Int(malformed) = %d, want default 7", got)
	}
	if got := String("UAC_TEST_UNSET", "def"); got != "def" {
		t.Errorf("String(unset) = %q, want def", got)
	}
}
