// Package env loads executable configuration from the process environment
// and optional .env files.
//
// Executables call [Load] once at startup and then use the typed getters to
// compute flag defaults, so that command-line flags always take precedence
// over the environment:
//
//	env.Load()
//	rate := flag.Uint("rate", env.Uint("UAC_RATE", 48000), "initial sample rate")
package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the given .env files (".env" when none are given) into the
// process environment. Variables that are already set are not overridden.
// Missing files are not an error.
func Load(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// String returns the value of key, or def when unset or empty.
func String(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Int returns the integer value of key, or def when unset or malformed.
func Int(key string, def int) int {
	if v := String(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Uint returns the unsigned value of key, or def when unset or malformed.
func Uint(key string, def uint) uint {
	if v := String(key, ""); v != "" {
		if n, err := strconv.ParseUint(v, 0, 0); err == nil {
			return uint(n)
		}
	}
	return def
}

// Bool returns the boolean value of key, or def when unset or malformed.
func Bool(key string, def bool) bool {
	if v := String(key, ""); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Duration returns the duration value of key, or def when unset or malformed.
func Duration(key string, def time.Duration) time.Duration {
	if v := String(key, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
