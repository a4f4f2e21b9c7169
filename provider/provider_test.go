package provider

import (
	"errors"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"ftp", KindFTP, true},
		{"ftps", KindFTPS, true},
		{"sftp", KindSFTP, true},
		{"FTP", KindFTP, true},
		{"SfTp", KindSFTP, true},
		{"", KindFTP, true},
		{"http", "", false},
		{"ftpss", "", false},
	}
	for _, c := range cases {
		got, err := ParseKind(c.in)
		if c.ok {
			if err != nil {
				t.Errorf("ParseKind(%q) unexpected error: %v", c.in, err)
			}
			if got != c.want {
				t.Errorf("ParseKind(%q) = %q, want %q", c.in, got, c.want)
			}
		} else if err == nil {
			t.Errorf("ParseKind(%q) expected error, got %q", c.in, got)
		}
	}
}

func TestClassifyFTP(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrKind
	}{
		{"login rejected", &textproto.Error{Code: 530, Msg: "Login incorrect"}, ErrAuth},
		{"file unavailable", &textproto.Error{Code: 550, Msg: "No such file"}, ErrProtocol},
		{"transient", &textproto.Error{Code: 450, Msg: "busy"}, ErrProtocol},
		{"dropped connection", errors.New("EOF"), ErrConnection},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := classifyFTP("test", c.err)
			var pe *Error
			if !errors.As(got, &pe) {
				t.Fatalf("classifyFTP returned %T, want *Error", got)
			}
			if pe.Kind != c.want {
				t.Errorf("kind = %v, want %v", pe.Kind, c.want)
			}
			if !errors.Is(got, c.err) {
				t.Errorf("wrapped error lost: %v", got)
			}
		})
	}
}

func TestClassifyFTPNil(t *testing.T) {
	if err := classifyFTP("test", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	e := &Error{Kind: ErrAuth, Op: "login", Err: errors.New("denied")}
	msg := e.Error()
	for _, want := range []string{"login", "auth", "denied"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}

func TestSFTPJoin(t *testing.T) {
	cases := []struct {
		cwd  string
		name string
		want string
	}{
		{".", "a.txt", "a.txt"},
		{"", "a.txt", "a.txt"},
		{"/in", "a.txt", "/in/a.txt"},
		{"/in/", "a.txt", "/in/a.txt"},
		{"data", "a.txt", "data/a.txt"},
	}
	for _, c := range cases {
		cl := &sftpClient{cwd: c.cwd}
		if got := cl.join(c.name); got != c.want {
			t.Errorf("join(%q, %q) = %q, want %q", c.cwd, c.name, got, c.want)
		}
	}
}

func TestDialSFTPRequiresCredential(t *testing.T) {
	_, err := dialSFTP("localhost", 22, Credentials{}, Options{Timeout: time.Second})
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if pe.Kind != ErrAuth {
		t.Errorf("kind = %v, want %v", pe.Kind, ErrAuth)
	}
}

func TestCountingReader(t *testing.T) {
	cr := &countingReader{r: strings.NewReader("hello world")}
	buf := make([]byte, 4)
	total := 0
	for {
		n, err := cr.Read(buf)
		total += n
		if err != nil {
			break
		}
	}
	if cr.n != int64(total) || cr.n != 11 {
		t.Errorf("counted %d bytes, want 11", cr.n)
	}
}

func TestDialFTPTimeoutCoversGreeting(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	// Accept the connection but never send the 220 greeting.
	done := make(chan struct{})
	defer close(done)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		<-done
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	start := time.Now()
	_, err = Dial(KindFTP, "127.0.0.1", port, Credentials{}, Options{Timeout: 500 * time.Millisecond})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout against a server that never greets")
	}
	if elapsed > 3*time.Second {
		t.Fatalf("dial returned after %s with a 500ms timeout", elapsed)
	}
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != ErrConnection {
		t.Errorf("error = %v, want connection kind", err)
	}
	if !strings.Contains(err.Error(), "timeout 500ms") {
		t.Errorf("error %q does not name the configured timeout", err)
	}
}

func TestClassifySSH(t *testing.T) {
	authFail := errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password], no supported methods remain")
	got := classifySSH("login", authFail)
	var pe *Error
	if !errors.As(got, &pe) || pe.Kind != ErrAuth {
		t.Errorf("userauth rejection classified as %v, want auth", got)
	}

	netFail := errors.New("ssh: handshake failed: read tcp 10.0.0.1:22: connection reset by peer")
	got = classifySSH("login", netFail)
	if !errors.As(got, &pe) || pe.Kind != ErrConnection {
		t.Errorf("transport failure classified as %v, want connection", got)
	}
}

func TestDialUnknownKind(t *testing.T) {
	_, err := Dial(Kind("gopher"), "localhost", 70, Credentials{}, Options{Timeout: time.Second})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
