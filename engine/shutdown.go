package engine

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Shutdown coordinates graceful termination. A signal or an explicit
// Request flips one flag; the transfer loops poll it between entries and
// between files and finish the file in flight before stopping. Nothing is
// interrupted mid-transfer.
type Shutdown struct {
	requested atomic.Bool
	cause     atomic.Int32
}

// Signal causes recorded by Install.
const (
	causeNone int32 = iota
	causeInt
	causeTerm
	causeRequest
)

// Install registers the termination signal handlers. The handler goroutine
// only stores into atomics so it is safe at any point of a transfer.
func (s *Shutdown) Install() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range ch {
			switch sig {
			case syscall.SIGINT:
				s.cause.Store(causeInt)
			default:
				s.cause.Store(causeTerm)
			}
			s.requested.Store(true)
		}
	}()
}

// Request asks for shutdown programmatically, with the same effect as a
// termination signal.
func (s *Shutdown) Request() {
	s.cause.Store(causeRequest)
	s.requested.Store(true)
}

// Requested reports whether shutdown has been asked for.
func (s *Shutdown) Requested() bool {
	return s.requested.Load()
}

// Cause names what triggered the shutdown, for the final log line.
func (s *Shutdown) Cause() string {
	switch s.cause.Load() {
	case causeInt:
		return "SIGINT"
	case causeTerm:
		return "SIGTERM"
	case causeRequest:
		return "request"
	}
	return "none"
}
