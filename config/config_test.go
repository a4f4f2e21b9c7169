package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burbilog/iftpfm2/provider"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transfers.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validLine = `{"host_from":"src.example.com","port_from":21,"login_from":"alice","password_from":"s1","path_from":"/out","proto_from":"ftp","host_to":"dst.example.com","port_to":22,"login_to":"bob","password_to":"s2","path_to":"/in","proto_to":"sftp","age":300,"filename_regexp":"\\.csv$"}`

func TestParseValid(t *testing.T) {
	path := writeConfig(t, "# transfer rules\n\n"+validLine+"\n")

	entries, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "src.example.com", e.HostFrom)
	assert.Equal(t, 21, e.PortFrom)
	assert.Equal(t, provider.KindFTP, e.KindFrom)
	assert.Equal(t, provider.KindSFTP, e.KindTo)
	assert.Equal(t, int64(300), e.Age)
	assert.Equal(t, 3, e.Line)
	assert.True(t, e.Pattern.MatchString("report.csv"))
	assert.False(t, e.Pattern.MatchString("report.csv.bak"))
}

func TestParseMultipleEntries(t *testing.T) {
	path := writeConfig(t, validLine+"\n"+validLine+"\n# trailing comment\n")

	entries, err := Parse(path)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestParseDefaultProtoIsFTP(t *testing.T) {
	line := `{"host_from":"a","port_from":21,"login_from":"u","password_from":"p","path_from":"/x","host_to":"b","port_to":21,"login_to":"u","password_to":"p","path_to":"/y","age":0,"filename_regexp":".*"}`
	entries, err := Parse(writeConfig(t, line+"\n"))
	require.NoError(t, err)
	assert.Equal(t, provider.KindFTP, entries[0].KindFrom)
	assert.Equal(t, provider.KindFTP, entries[0].KindTo)
}

func TestParseBadJSONNamesLine(t *testing.T) {
	path := writeConfig(t, "# header\n"+validLine+"\n{not json\n")

	_, err := Parse(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "absent.conf"))
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	base := func() *Entry {
		return &Entry{
			HostFrom: "a", PortFrom: 21, LoginFrom: "u", PasswordFrom: "p",
			PathFrom: "/x", ProtoFrom: "ftp",
			HostTo: "b", PortTo: 21, LoginTo: "u", PasswordTo: "p",
			PathTo: "/y", ProtoTo: "ftp",
			Age: 10, FilenameRegexp: ".*",
		}
	}

	cases := []struct {
		name    string
		mutate  func(*Entry)
		wantMsg string
	}{
		{"bad proto", func(e *Entry) { e.ProtoFrom = "telnet" }, "proto_from"},
		{"missing host", func(e *Entry) { e.HostFrom = "" }, "host_from"},
		{"port zero", func(e *Entry) { e.PortTo = 0 }, "port_to"},
		{"port too large", func(e *Entry) { e.PortFrom = 70000 }, "port_from"},
		{"missing path", func(e *Entry) { e.PathTo = "" }, "path_to"},
		{"negative age", func(e *Entry) { e.Age = -1 }, "age"},
		{"missing regexp", func(e *Entry) { e.FilenameRegexp = "" }, "filename_regexp"},
		{"bad regexp", func(e *Entry) { e.FilenameRegexp = "([" }, "filename_regexp"},
		{"sftp without credentials", func(e *Entry) {
			e.ProtoTo = "sftp"
			e.PasswordTo = ""
		}, "sftp destination"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e := base()
			c.mutate(e)
			err := e.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.wantMsg)
		})
	}
}

func TestValidateSFTPKeyFileSuffices(t *testing.T) {
	e := &Entry{
		HostFrom: "a", PortFrom: 22, LoginFrom: "u", KeyFileFrom: "/keys/id_ed25519",
		PathFrom: "/x", ProtoFrom: "sftp",
		HostTo: "b", PortTo: 21, LoginTo: "u", PasswordTo: "p",
		PathTo: "/y", ProtoTo: "ftp",
		Age: 0, FilenameRegexp: ".*",
	}
	require.NoError(t, e.validate())
	assert.Equal(t, "/keys/id_ed25519", e.SourceCreds().KeyFile)
}

func TestStringHidesPasswords(t *testing.T) {
	e := &Entry{
		HostFrom: "a", PortFrom: 21, LoginFrom: "u", PasswordFrom: "topsecret",
		PathFrom: "/x", ProtoFrom: "ftp",
		HostTo: "b", PortTo: 21, LoginTo: "u", PasswordTo: "alsosecret",
		PathTo: "/y", ProtoTo: "ftp",
		Age: 0, FilenameRegexp: ".*",
	}
	require.NoError(t, e.validate())
	s := e.String()
	assert.NotContains(t, s, "topsecret")
	assert.NotContains(t, s, "alsosecret")
	assert.Contains(t, s, "ftp://u@a:21/x")
}
