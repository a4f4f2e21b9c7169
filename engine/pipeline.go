package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/burbilog/iftpfm2/config"
	"github.com/burbilog/iftpfm2/logging"
	"github.com/burbilog/iftpfm2/provider"
)

// DialFunc establishes a session against one endpoint. Production code uses
// provider.Dial; tests substitute an in-memory backend.
type DialFunc func(kind provider.Kind, host string, port int, creds provider.Credentials, opts provider.Options) (provider.Client, error)

// Recorder receives the outcome of each attempted file transfer. A nil
// Recorder on the pipeline disables journaling.
type Recorder interface {
	RecordTransfer(route, name string, bytes int64, ok bool) error
}

// Pipeline moves the files of one configuration entry from its source
// endpoint to its destination endpoint.
type Pipeline struct {
	Entry    *config.Entry
	Dial     DialFunc
	Opts     provider.Options
	Buffers  *BufferFactory
	Shutdown *Shutdown
	Log      *logging.Logger
	Journal  Recorder

	// Delete removes the source file after a verified transfer.
	Delete bool

	// Worker tags this pipeline's log lines.
	Worker int

	// now is swappable for age-filter tests.
	now func() time.Time
}

func (p *Pipeline) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

func (p *Pipeline) logf(format string, args ...any) {
	p.Log.Workerf(p.Worker, format, args...)
}

// connect dials and prepares one side of the transfer: session, login,
// working directory, binary mode.
func (p *Pipeline) connect(kind provider.Kind, host string, port int, user, password string, creds provider.Credentials, path string) (provider.Client, error) {
	c, err := p.Dial(kind, host, port, creds, p.Opts)
	if err != nil {
		return nil, err
	}
	if err := c.Login(user, password); err != nil {
		c.Quit()
		return nil, err
	}
	if err := c.ChangeDir(path); err != nil {
		c.Quit()
		return nil, err
	}
	if err := c.SetBinary(); err != nil {
		c.Quit()
		return nil, err
	}
	return c, nil
}

// Run executes the entry and returns the number of files transferred. A
// connection-level failure on either side aborts the entry with zero
// transfers; per-file failures are logged and skipped.
func (p *Pipeline) Run() (int, error) {
	e := p.Entry

	src, err := p.connect(e.KindFrom, e.HostFrom, e.PortFrom, e.LoginFrom, e.PasswordFrom, e.SourceCreds(), e.PathFrom)
	if err != nil {
		p.logf("ERROR connecting to source %s:%d: %v", e.HostFrom, e.PortFrom, err)
		return 0, err
	}
	defer src.Quit()

	dst, err := p.connect(e.KindTo, e.HostTo, e.PortTo, e.LoginTo, e.PasswordTo, e.DestCreds(), e.PathTo)
	if err != nil {
		p.logf("ERROR connecting to destination %s:%d: %v", e.HostTo, e.PortTo, err)
		return 0, err
	}
	defer dst.Quit()

	names, err := src.List()
	if err != nil {
		p.logf("ERROR listing %s on %s: %v", e.PathFrom, e.HostFrom, err)
		return 0, err
	}
	p.logf("Number of files retrieved: %d", len(names))

	candidates := 0
	moved := 0
	for _, name := range names {
		if p.Shutdown != nil && p.Shutdown.Requested() {
			p.logf("shutdown requested, stopping before %s", name)
			break
		}
		if !e.Pattern.MatchString(name) {
			continue
		}
		candidates++
		ok, err := p.transferOne(src, dst, name)
		if err != nil {
			var fatal *FatalError
			if errors.As(err, &fatal) {
				return moved, err
			}
			p.logf("ERROR transferring %s: %v", name, err)
			p.record(name, 0, false)
			continue
		}
		if ok {
			moved++
		}
	}
	p.logf("transferred %d out of %d files from %s", moved, candidates, e.String())
	return moved, nil
}

// transferOne moves a single file. It returns (false, nil) for filtered or
// skipped files, (true, nil) on success and an error on a failed attempt.
func (p *Pipeline) transferOne(src, dst provider.Client, name string) (bool, error) {
	now := p.clock()

	mtime, err := src.ModTime(name)
	if err != nil {
		p.logf("skipping %s: cannot read modification time: %v", name, err)
		return false, nil
	}
	if mtime.Unix() < 0 {
		p.logf("skipping %s: modification time %s predates the epoch", name, mtime)
		return false, nil
	}
	if mtime.After(now) {
		p.logf("skipping %s: modification time %s is in the future", name, mtime)
		return false, nil
	}
	if age := p.Entry.Age; age > 0 && now.Sub(mtime) < time.Duration(age)*time.Second {
		p.Log.Debugf("[T%d] skipping %s: younger than %d seconds", p.Worker, name, age)
		return false, nil
	}

	size, err := src.Size(name)
	if err != nil {
		p.logf("skipping %s: cannot read size: %v", name, err)
		return false, nil
	}

	buf, err := p.Buffers.New(size)
	if err != nil {
		return false, err
	}
	defer buf.Close()

	rc, err := src.Download(name)
	if err != nil {
		return false, fmt.Errorf("download: %w", err)
	}
	_, err = io.Copy(buf, rc)
	rc.Close()
	if err != nil {
		return false, fmt.Errorf("download: %w", err)
	}
	if buf.Len() != size {
		return false, fmt.Errorf("download: read %d bytes, expected %d", buf.Len(), size)
	}

	tmp := fmt.Sprintf(".%s.%d.tmp", name, os.Getpid())
	r, err := buf.Reader()
	if err != nil {
		return false, err
	}
	written, err := dst.Upload(tmp, r)
	if err != nil {
		dst.Remove(tmp)
		return false, fmt.Errorf("upload: %w", err)
	}
	if written != size {
		dst.Remove(tmp)
		return false, &VerificationError{Name: name, Expected: size, Actual: written, Stage: "write"}
	}

	got, err := dst.Size(tmp)
	if err != nil {
		dst.Remove(tmp)
		return false, fmt.Errorf("verify: %w", err)
	}
	if got != size {
		dst.Remove(tmp)
		return false, &VerificationError{Name: name, Expected: size, Actual: got, Stage: "upload"}
	}

	if err := dst.Rename(tmp, name); err != nil {
		// The usual cause is an existing file under the final name on a
		// backend without atomic overwrite. Remove it and retry once;
		// the final name is briefly absent during this window.
		dst.Remove(name)
		if err := dst.Rename(tmp, name); err != nil {
			dst.Remove(tmp)
			return false, &RenameError{Name: name, Tmp: tmp, Err: err}
		}
	}

	got, err = dst.Size(name)
	if err != nil {
		return false, fmt.Errorf("verify after rename: %w", err)
	}
	if got != size {
		return false, &VerificationError{Name: name, Expected: size, Actual: got, Stage: "rename"}
	}

	if p.Delete {
		if err := src.Remove(name); err != nil {
			p.logf("WARNING: transferred %s but could not delete the source copy: %v", name, err)
		}
	}

	p.logf("transferred %s (%d bytes)", name, size)
	p.record(name, size, true)
	return true, nil
}

func (p *Pipeline) record(name string, bytes int64, ok bool) {
	if p.Journal == nil {
		return
	}
	if err := p.Journal.RecordTransfer(p.Entry.String(), name, bytes, ok); err != nil {
		p.logf("WARNING: journal write for %s failed: %v", name, err)
	}
}
