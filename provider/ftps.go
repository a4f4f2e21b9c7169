package provider

import (
	"crypto/tls"
	"fmt"

	"github.com/jlaffaye/ftp"
)

func dialFTPS(host string, port int, opts Options) (Client, error) {
	tlsConf := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := dialServer(addr, opts, ftp.DialWithExplicitTLS(tlsConf))
	if err != nil {
		return nil, connErr("connect", fmt.Errorf("%s (timeout %s): %w", addr, opts.Timeout, err))
	}
	return &ftpClient{conn: conn}, nil
}
