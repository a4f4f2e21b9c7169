package provider

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/jlaffaye/ftp"
)

// ftpClient adapts *ftp.ServerConn to the Client contract. It backs both
// the plain FTP and the explicit-TLS FTPS kinds; the two differ only in
// how the connection is dialed.
type ftpClient struct {
	conn *ftp.ServerConn
}

// dialServer establishes the control connection with the whole setup under
// one deadline measured from the start of the call: TCP connect, the 220
// greeting, and the AUTH TLS upgrade when explicit TLS is requested. The
// library's own timeout option only bounds the TCP phase, so the deadline
// is set on the raw connection and lifted once Dial returns.
func dialServer(addr string, opts Options, extra ...ftp.DialOption) (*ftp.ServerConn, error) {
	start := time.Now()
	var tcp net.Conn
	dial := func(network, address string) (net.Conn, error) {
		c, err := net.DialTimeout(network, address, opts.Timeout)
		if err != nil {
			return nil, err
		}
		if err := c.SetDeadline(start.Add(opts.Timeout)); err != nil {
			c.Close()
			return nil, err
		}
		tcp = c
		return c, nil
	}
	conn, err := ftp.Dial(addr, append([]ftp.DialOption{ftp.DialWithDialFunc(dial)}, extra...)...)
	if err != nil {
		if tcp != nil {
			tcp.Close()
		}
		return nil, err
	}
	if err := tcp.SetDeadline(time.Time{}); err != nil {
		conn.Quit()
		return nil, err
	}
	return conn, nil
}

func dialFTP(host string, port int, opts Options) (Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := dialServer(addr, opts)
	if err != nil {
		return nil, connErr("connect", fmt.Errorf("%s (timeout %s): %w", addr, opts.Timeout, err))
	}
	return &ftpClient{conn: conn}, nil
}

func (c *ftpClient) Login(user, password string) error {
	if err := c.conn.Login(user, password); err != nil {
		return classifyFTP("login", err)
	}
	return nil
}

func (c *ftpClient) ChangeDir(path string) error {
	if err := c.conn.ChangeDir(path); err != nil {
		return classifyFTP("chdir", err)
	}
	return nil
}

func (c *ftpClient) SetBinary() error {
	if err := c.conn.Type(ftp.TransferTypeBinary); err != nil {
		return classifyFTP("type", err)
	}
	return nil
}

func (c *ftpClient) List() ([]string, error) {
	names, err := c.conn.NameList("")
	if err != nil {
		return nil, classifyFTP("list", err)
	}
	return names, nil
}

func (c *ftpClient) ModTime(name string) (time.Time, error) {
	t, err := c.conn.GetTime(name)
	if err != nil {
		return time.Time{}, classifyFTP("mdtm", err)
	}
	return t, nil
}

func (c *ftpClient) Size(name string) (int64, error) {
	n, err := c.conn.FileSize(name)
	if err != nil {
		return 0, classifyFTP("size", err)
	}
	return n, nil
}

func (c *ftpClient) Download(name string) (io.ReadCloser, error) {
	resp, err := c.conn.Retr(name)
	if err != nil {
		return nil, classifyFTP("retr", err)
	}
	return resp, nil
}

func (c *ftpClient) Upload(name string, r io.Reader) (int64, error) {
	counted := &countingReader{r: r}
	if err := c.conn.Stor(name, counted); err != nil {
		return counted.n, classifyFTP("stor", err)
	}
	return counted.n, nil
}

func (c *ftpClient) Rename(from, to string) error {
	if err := c.conn.Rename(from, to); err != nil {
		return classifyFTP("rename", err)
	}
	return nil
}

func (c *ftpClient) Remove(name string) error {
	if err := c.conn.Delete(name); err != nil {
		return classifyFTP("delete", err)
	}
	return nil
}

func (c *ftpClient) Quit() error {
	if err := c.conn.Quit(); err != nil {
		return connErr("quit", err)
	}
	return nil
}

// countingReader tracks bytes consumed by Stor so Upload can report the
// transferred length even though the library does not.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
