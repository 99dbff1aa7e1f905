// Package prof captures runtime profiles around a bridge run.
//
// It is conditionally compiled using the "profile" build tag:
//
//	go build -tags profile ./examples/sim-hal/loopback
//
// Without the tag [Start] returns an empty session and nothing is
// recorded, so executables can keep their profiling flags unconditionally.
//
// # Sessions
//
// A [Session] starts the profiles named in [Options] and writes them when
// stopped:
//
//	s, err := prof.Start(prof.Options{
//	    CPUPath:   "cpu.prof",
//	    MutexPath: "mutex.prof",
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Stop()
//
// Mutex contention is the profile of most interest for the streaming core:
// the playback and capture paths each hold a lock per packet, and the clock
// sequencer takes both while it quiesces the bus.
//
// # HTTP Profiling
//
// With HTTPAddr set, the standard /debug/pprof handlers are served for the
// lifetime of the session.
//
// Only one session may be active at a time; [Start] returns [ErrActive]
// otherwise.
package prof
