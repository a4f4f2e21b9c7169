// Package instance enforces the single-instance rule. A new process takes
// over from a running one: it terminates the previous holder, waits out a
// grace period, then locks the pid file and records itself.
package instance

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/burbilog/iftpfm2/logging"
)

const (
	pollInterval = 500 * time.Millisecond

	// killPolls bounds the wait after SIGKILL. A zombie keeps answering
	// signal probes until its parent reaps it, so this wait can never be
	// open-ended; the flock taken afterwards is the real arbiter.
	killPolls = 4
)

// Guard holds the pid-file lock for the lifetime of the process.
type Guard struct {
	path string
	file *os.File
}

// alive reports whether a process with the given pid exists. EPERM means
// the process exists but belongs to another user, which still counts.
func alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// readPid returns the pid recorded in the file, or 0 when the file is
// missing, empty or unparsable. A stale or garbled pid file is not an
// error; the lock below is the real arbiter.
func readPid(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// preempt asks the previous holder to exit. SIGTERM first, polling until
// the grace period runs out, then SIGKILL.
func preempt(pid int, grace time.Duration, log *logging.Logger) {
	log.Printf("previous instance %d is running, sending SIGTERM", pid)
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !alive(pid) {
			log.Printf("previous instance %d exited", pid)
			return
		}
		time.Sleep(pollInterval)
	}
	log.Printf("previous instance %d did not exit within %s, sending SIGKILL", pid, grace)
	unix.Kill(pid, unix.SIGKILL)
	for i := 0; i < killPolls && alive(pid); i++ {
		time.Sleep(pollInterval)
	}
	if alive(pid) {
		log.Printf("previous instance %d still present after SIGKILL, relying on the file lock", pid)
	}
}

// Acquire takes ownership of the pid file at path. If another live process
// is recorded there it is preempted first. The pid is written only after
// the advisory lock is held, so a concurrent starter can never read a pid
// written by a process that lost the race.
func Acquire(path string, grace time.Duration, log *logging.Logger) (*Guard, error) {
	if pid := readPid(path); pid > 0 && pid != os.Getpid() && alive(pid) {
		preempt(pid, grace, log)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open pid file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("pid file %s is locked by another instance", path)
		}
		return nil, fmt.Errorf("lock pid file %s: %w", path, err)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate pid file %s: %w", path, err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("write pid file %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("sync pid file %s: %w", path, err)
	}

	return &Guard{path: path, file: f}, nil
}

// Release removes the pid file and drops the lock. Safe to call once on
// every exit path.
func (g *Guard) Release() error {
	if g.file == nil {
		return nil
	}
	rmErr := os.Remove(g.path)
	unix.Flock(int(g.file.Fd()), unix.LOCK_UN)
	closeErr := g.file.Close()
	g.file = nil
	if rmErr != nil {
		return rmErr
	}
	return closeErr
}
