package provider

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// sftpClient speaks file transfer over SSH. The SSH handshake and
// authentication happen together, so Dial only establishes the TCP
// connection and Login drives the rest under the same deadline.
//
// SFTP has no working-directory command. The client keeps a cwd string and
// prefixes it onto every file name, which gives the same observable
// behavior as ChangeDir on the FTP backends.
type sftpClient struct {
	tcp      net.Conn
	addr     string
	creds    Credentials
	deadline time.Time
	client   *sftp.Client
	sshConn  ssh.Conn
	cwd      string
}

func dialSFTP(host string, port int, creds Credentials, opts Options) (Client, error) {
	if creds.Password == "" && creds.KeyFile == "" {
		return nil, authErr("connect", errors.New("sftp requires a password or a key file"))
	}
	start := time.Now()
	addr := fmt.Sprintf("%s:%d", host, port)
	tcp, err := net.DialTimeout("tcp", addr, opts.Timeout)
	if err != nil {
		return nil, connErr("connect", fmt.Errorf("%s (timeout %s): %w", addr, opts.Timeout, err))
	}
	deadline := start.Add(opts.Timeout)
	if err := tcp.SetDeadline(deadline); err != nil {
		tcp.Close()
		return nil, connErr("connect", err)
	}
	return &sftpClient{tcp: tcp, addr: addr, creds: creds, deadline: deadline, cwd: "."}, nil
}

// classifySSH separates userauth rejections from transport and handshake
// failures. The ssh package reports both through plain errors, so the
// userauth case is matched on its fixed message.
func classifySSH(op string, err error) error {
	if strings.Contains(err.Error(), "unable to authenticate") {
		return authErr(op, err)
	}
	return connErr(op, err)
}

// authMethod builds the SSH authentication method from the credentials
// fixed at dial time. A key file wins over a password when both are set.
func (c *sftpClient) authMethod() (ssh.AuthMethod, error) {
	if c.creds.KeyFile == "" {
		return ssh.Password(c.creds.Password), nil
	}
	pem, err := os.ReadFile(c.creds.KeyFile)
	if err != nil {
		return nil, err
	}
	var signer ssh.Signer
	if c.creds.KeyPassphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(c.creds.KeyPassphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(pem)
	}
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func (c *sftpClient) Login(user, _ string) error {
	auth, err := c.authMethod()
	if err != nil {
		c.tcp.Close()
		return authErr("login", err)
	}
	conf := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         time.Until(c.deadline),
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(c.tcp, c.addr, conf)
	if err != nil {
		c.tcp.Close()
		return classifySSH("login", err)
	}
	client, err := sftp.NewClient(ssh.NewClient(sshConn, chans, reqs))
	if err != nil {
		sshConn.Close()
		return connErr("login", err)
	}
	// Setup is done. Lift the handshake deadline so transfers are not
	// cut off mid-stream.
	if err := c.tcp.SetDeadline(time.Time{}); err != nil {
		client.Close()
		sshConn.Close()
		return connErr("login", err)
	}
	c.client = client
	c.sshConn = sshConn
	return nil
}

// join resolves name against the pseudo working directory.
func (c *sftpClient) join(name string) string {
	if c.cwd == "" || c.cwd == "." {
		return name
	}
	if c.cwd[len(c.cwd)-1] == '/' {
		return c.cwd + name
	}
	return c.cwd + "/" + name
}

func (c *sftpClient) ChangeDir(path string) error {
	info, err := c.client.Stat(path)
	if err != nil {
		return protoErr("chdir", err)
	}
	if !info.IsDir() {
		return protoErr("chdir", fmt.Errorf("%s: not a directory", path))
	}
	c.cwd = path
	return nil
}

// SetBinary is a no-op: SFTP transfers are always raw bytes.
func (c *sftpClient) SetBinary() error { return nil }

func (c *sftpClient) List() ([]string, error) {
	entries, err := c.client.ReadDir(c.cwd)
	if err != nil {
		return nil, protoErr("list", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Mode().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (c *sftpClient) ModTime(name string) (time.Time, error) {
	info, err := c.client.Stat(c.join(name))
	if err != nil {
		return time.Time{}, protoErr("stat", err)
	}
	return info.ModTime(), nil
}

func (c *sftpClient) Size(name string) (int64, error) {
	info, err := c.client.Stat(c.join(name))
	if err != nil {
		return 0, protoErr("stat", err)
	}
	return info.Size(), nil
}

func (c *sftpClient) Download(name string) (io.ReadCloser, error) {
	f, err := c.client.Open(c.join(name))
	if err != nil {
		return nil, ioErr("open", err)
	}
	return f, nil
}

func (c *sftpClient) Upload(name string, r io.Reader) (int64, error) {
	f, err := c.client.Create(c.join(name))
	if err != nil {
		return 0, ioErr("create", err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return n, ioErr("write", err)
	}
	if err := f.Close(); err != nil {
		return n, ioErr("close", err)
	}
	return n, nil
}

func (c *sftpClient) Rename(from, to string) error {
	if err := c.client.Rename(c.join(from), c.join(to)); err != nil {
		return protoErr("rename", err)
	}
	return nil
}

func (c *sftpClient) Remove(name string) error {
	if err := c.client.Remove(c.join(name)); err != nil {
		return protoErr("remove", err)
	}
	return nil
}

func (c *sftpClient) Quit() error {
	var first error
	if c.client != nil {
		first = c.client.Close()
	}
	if c.sshConn != nil {
		if err := c.sshConn.Close(); err != nil && first == nil {
			first = err
		}
	} else if c.tcp != nil {
		if err := c.tcp.Close(); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return connErr("quit", first)
	}
	return nil
}
