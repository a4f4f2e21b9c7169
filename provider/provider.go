package provider

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Kind identifies the wire protocol spoken by a backend.
type Kind string

const (
	// KindFTP is plain, unencrypted FTP.
	KindFTP Kind = "ftp"
	// KindFTPS is FTP upgraded to TLS with AUTH TLS (explicit FTPS).
	KindFTPS Kind = "ftps"
	// KindSFTP is file transfer over an SSH session.
	KindSFTP Kind = "sftp"
)

// ParseKind converts a configuration string into a Kind.
// An empty string maps to KindFTP.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case "", KindFTP:
		return KindFTP, nil
	case KindFTPS:
		return KindFTPS, nil
	case KindSFTP:
		return KindSFTP, nil
	}
	return "", fmt.Errorf("unknown protocol %q (want ftp, ftps or sftp)", s)
}

// Credentials holds everything a backend may need to authenticate.
// FTP and FTPS use Password only. SFTP uses Password, or KeyFile with an
// optional KeyPassphrase; the method is fixed at dial time.
type Credentials struct {
	Password      string
	KeyFile       string
	KeyPassphrase string
}

// Options carries per-connection settings shared by all backends.
type Options struct {
	// Timeout bounds the whole connection setup, from the start of the
	// Dial call through the TCP connect and the protocol or security
	// handshake above it.
	Timeout time.Duration

	// InsecureSkipVerify disables certificate trust checks for FTPS.
	// The TLS handshake is still performed, so failures other than
	// an untrusted certificate are still reported.
	InsecureSkipVerify bool
}

// Client is the capability contract shared by the three backends.
//
// A Client represents one live session against one server. Implementations
// track whatever per-session state their protocol needs (the SFTP backend
// keeps a pseudo working directory, since SSH file transfer has no native
// one) so that callers can treat all three protocols uniformly. Clients are
// not safe for concurrent use.
//
// Every method reports failures as a *Error so callers can branch on the
// error kind instead of on backend-specific error types.
type Client interface {
	// Login authenticates the session. For SFTP the credential supplied
	// at dial time is used and password is ignored.
	Login(user, password string) error

	// ChangeDir switches the session's working directory. All name
	// arguments of the remaining methods are interpreted relative to it.
	ChangeDir(path string) error

	// SetBinary negotiates binary transfer mode once per session.
	// It is a no-op for protocols that only know binary transfers.
	SetBinary() error

	// List returns the file names in the working directory. It does not
	// recurse and does not include directories.
	List() ([]string, error)

	// ModTime fetches the modification time of one file.
	ModTime(name string) (time.Time, error)

	// Size fetches the size in bytes of one file.
	Size(name string) (int64, error)

	// Download opens a read stream for one file. The caller must close it
	// before issuing any other command on the session.
	Download(name string) (io.ReadCloser, error)

	// Upload writes r to the named file, replacing any previous content,
	// and returns the number of bytes written.
	Upload(name string, r io.Reader) (int64, error)

	// Rename moves a file within the working directory. Whether an
	// existing target is overwritten is server-dependent; callers that
	// need replace semantics must remove the target and retry.
	Rename(from, to string) error

	// Remove deletes one file.
	Remove(name string) error

	// Quit ends the session. The Client is unusable afterwards.
	Quit() error
}

// Dial connects to host:port with the backend selected by kind and returns
// an unauthenticated Client. The timeout in opts covers the TCP connect and
// the protocol or TLS/SSH handshake; authentication happens in Login.
func Dial(kind Kind, host string, port int, creds Credentials, opts Options) (Client, error) {
	switch kind {
	case KindFTP:
		return dialFTP(host, port, opts)
	case KindFTPS:
		return dialFTPS(host, port, opts)
	case KindSFTP:
		return dialSFTP(host, port, creds, opts)
	}
	return nil, &Error{Kind: ErrProtocol, Op: "connect", Err: fmt.Errorf("unknown protocol kind %q", kind)}
}
