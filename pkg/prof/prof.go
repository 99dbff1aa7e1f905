//go:build profile

package prof

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	rpprof "runtime/pprof"
	"sync"
	"time"

	"github.com/ardnew/uacbridge/pkg"
)

// ErrActive indicates a profiling session is already active.
var ErrActive = errors.New("profiling session already active")

// Options selects the profiles captured by a session. Empty paths are
// skipped.
type Options struct {
	CPUPath   string
	MutexPath string
	BlockPath string
	HeapPath  string
	HTTPAddr  string
}

// Session is an active profiling session.
type Session struct {
	opts   Options
	cpu    *os.File
	server *http.Server
	once   sync.Once
	err    error
}

var (
	mutex  sync.Mutex
	active *Session
)

// Enabled reports whether profiling support is compiled in.
func Enabled() bool { return true }

// Start begins the profiles named in opts.
func Start(opts Options) (*Session, error) {
	mutex.Lock()
	defer mutex.Unlock()

	if active != nil {
		return nil, ErrActive
	}

	s := &Session{opts: opts}

	if opts.CPUPath != "" {
		f, err := os.Create(opts.CPUPath)
		if err != nil {
			return nil, fmt.Errorf("create cpu profile: %w", err)
		}
		if err := rpprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("start cpu profile: %w", err)
		}
		s.cpu = f
	}
	if opts.MutexPath != "" {
		runtime.SetMutexProfileFraction(1)
	}
	if opts.BlockPath != "" {
		runtime.SetBlockProfileRate(1)
	}
	if opts.HTTPAddr != "" {
		if err := s.serve(opts.HTTPAddr); err != nil {
			s.stopCPU()
			return nil, err
		}
	}

	active = s
	pkg.LogInfo(pkg.ComponentBridge, "profiling started",
		"cpu", opts.CPUPath, "mutex", opts.MutexPath, "block", opts.BlockPath,
		"heap", opts.HeapPath, "http", opts.HTTPAddr)
	return s, nil
}

func (s *Session) serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			pkg.LogWarn(pkg.ComponentBridge, "pprof server stopped", "error", err)
		}
	}()
	return nil
}

func (s *Session) stopCPU() error {
	if s.cpu == nil {
		return nil
	}
	rpprof.StopCPUProfile()
	err := s.cpu.Close()
	s.cpu = nil
	return err
}

// Stop ends the session and writes the snapshot profiles. It is safe to
// call more than once and on a nil session.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		var errs []error
		errs = append(errs, s.stopCPU())
		errs = append(errs, write("mutex", s.opts.MutexPath))
		errs = append(errs, write("block", s.opts.BlockPath))
		errs = append(errs, write("heap", s.opts.HeapPath))

		if s.opts.MutexPath != "" {
			runtime.SetMutexProfileFraction(0)
		}
		if s.opts.BlockPath != "" {
			runtime.SetBlockProfileRate(0)
		}
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			errs = append(errs, s.server.Shutdown(ctx))
			cancel()
		}

		mutex.Lock()
		active = nil
		mutex.Unlock()

		s.err = errors.Join(errs...)
	})
	return s.err
}

func write(name, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s profile: %w", name, err)
	}
	defer f.Close()
	return rpprof.Lookup(name).WriteTo(f, 0)
}
