//go:build !profile

package prof

import "errors"

// ErrActive indicates a profiling session is already active.
var ErrActive = errors.New("profiling session already active")

// Options selects the profiles captured by a session. Ignored without the
// "profile" build tag.
type Options struct {
	CPUPath   string
	MutexPath string
	BlockPath string
	HeapPath  string
	HTTPAddr  string
}

// Session is a no-op profiling session.
type Session struct{}

// Enabled reports whether profiling support is compiled in.
func Enabled() bool { return false }

// Start returns an empty session.
func Start(_ Options) (*Session, error) {
	return &Session{}, nil
}

// Stop is a no-op.
func (s *Session) Stop() error { return nil }
