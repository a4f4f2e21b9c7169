// Package config loads transfer entries from a line-oriented JSON file.
// Each non-blank, non-comment line is one JSON object describing a source
// endpoint, a destination endpoint and the file selection rules.
package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/burbilog/iftpfm2/provider"
)

// Entry is one transfer job: move files matching FilenameRegexp and older
// than Age seconds from the source endpoint to the destination endpoint.
type Entry struct {
	HostFrom          string `json:"host_from"`
	PortFrom          int    `json:"port_from"`
	LoginFrom         string `json:"login_from"`
	PasswordFrom      string `json:"password_from"`
	KeyFileFrom       string `json:"keyfile_from"`
	KeyPassphraseFrom string `json:"keyfile_passphrase_from"`
	PathFrom          string `json:"path_from"`
	ProtoFrom         string `json:"proto_from"`

	HostTo          string `json:"host_to"`
	PortTo          int    `json:"port_to"`
	LoginTo         string `json:"login_to"`
	PasswordTo      string `json:"password_to"`
	KeyFileTo       string `json:"keyfile_to"`
	KeyPassphraseTo string `json:"keyfile_passphrase_to"`
	PathTo          string `json:"path_to"`
	ProtoTo         string `json:"proto_to"`

	// Age is the minimum file age in seconds. Zero disables the age
	// filter so every matching file is transferred.
	Age int64 `json:"age"`

	FilenameRegexp string `json:"filename_regexp"`

	// Pattern is the compiled form of FilenameRegexp, set by validation.
	Pattern *regexp.Regexp `json:"-"`

	// KindFrom and KindTo are the parsed protocol kinds, set by validation.
	KindFrom provider.Kind `json:"-"`
	KindTo   provider.Kind `json:"-"`

	// Line is the 1-based line number in the config file, for messages.
	Line int `json:"-"`
}

// SourceCreds returns the credentials for the source endpoint.
func (e *Entry) SourceCreds() provider.Credentials {
	return provider.Credentials{
		Password:      e.PasswordFrom,
		KeyFile:       e.KeyFileFrom,
		KeyPassphrase: e.KeyPassphraseFrom,
	}
}

// DestCreds returns the credentials for the destination endpoint.
func (e *Entry) DestCreds() provider.Credentials {
	return provider.Credentials{
		Password:      e.PasswordTo,
		KeyFile:       e.KeyFileTo,
		KeyPassphrase: e.KeyPassphraseTo,
	}
}

// String identifies the entry in log lines without leaking credentials.
func (e *Entry) String() string {
	return fmt.Sprintf("%s://%s@%s:%d%s -> %s://%s@%s:%d%s",
		e.KindFrom, e.LoginFrom, e.HostFrom, e.PortFrom, e.PathFrom,
		e.KindTo, e.LoginTo, e.HostTo, e.PortTo, e.PathTo)
}

// Parse reads entries from path. Lines starting with # and blank lines are
// skipped. Every entry is validated; the first invalid line aborts the
// parse with an error naming the line.
func Parse(path string) ([]*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var entries []*Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e := &Entry{Line: lineNo}
		if err := json.Unmarshal([]byte(line), e); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNo, err)
		}
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return entries, nil
}

func (e *Entry) validate() error {
	var err error
	if e.KindFrom, err = provider.ParseKind(e.ProtoFrom); err != nil {
		return fmt.Errorf("proto_from: %w", err)
	}
	if e.KindTo, err = provider.ParseKind(e.ProtoTo); err != nil {
		return fmt.Errorf("proto_to: %w", err)
	}
	if e.HostFrom == "" {
		return fmt.Errorf("host_from is required")
	}
	if e.HostTo == "" {
		return fmt.Errorf("host_to is required")
	}
	if e.PortFrom < 1 || e.PortFrom > 65535 {
		return fmt.Errorf("port_from %d out of range", e.PortFrom)
	}
	if e.PortTo < 1 || e.PortTo > 65535 {
		return fmt.Errorf("port_to %d out of range", e.PortTo)
	}
	if e.PathFrom == "" {
		return fmt.Errorf("path_from is required")
	}
	if e.PathTo == "" {
		return fmt.Errorf("path_to is required")
	}
	if e.Age < 0 {
		return fmt.Errorf("age must not be negative")
	}
	if e.FilenameRegexp == "" {
		return fmt.Errorf("filename_regexp is required")
	}
	if e.Pattern, err = regexp.Compile(e.FilenameRegexp); err != nil {
		return fmt.Errorf("filename_regexp: %w", err)
	}
	if e.KindFrom == provider.KindSFTP && e.PasswordFrom == "" && e.KeyFileFrom == "" {
		return fmt.Errorf("sftp source needs password_from or keyfile_from")
	}
	if e.KindTo == provider.KindSFTP && e.PasswordTo == "" && e.KeyFileTo == "" {
		return fmt.Errorf("sftp destination needs password_to or keyfile_to")
	}
	return nil
}
