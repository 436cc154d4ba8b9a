package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	o, err := Parse("test", nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", o.Addr)
	assert.Equal(t, "credentials.json", o.CredentialsFile)
	assert.Empty(t, o.RedisURL)
}

func TestParse_Flags(t *testing.T) {
	t.Chdir(t.TempDir())

	o, err := Parse("test", []string{"-a", ":9000", "-api", "http://api", "-redis", "redis://r:6379/0"})
	require.NoError(t, err)
	assert.Equal(t, ":9000", o.Addr)
	assert.Equal(t, "http://api", o.APIURL)
	assert.Equal(t, "redis://r:6379/0", o.RedisURL)
}

func TestParse_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shop.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"api_url":"http://from-file","log_level":"debug"}`), 0o600))

	t.Setenv("CONFIG", path)
	t.Setenv("LOG_LEVEL", "warn")

	o, err := Parse("test", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file", o.APIURL)
	assert.Equal(t, "warn", o.LogLevel)
}

func TestParse_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := Parse("test", []string{"-c", path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error while parsing config file")
}

func TestParse_TLS(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CA_FILE", "/etc/shop/ca.crt")
	t.Setenv("TLS_KEY_FILE", "/etc/shop/server.key")

	o, err := Parse("test", []string{"-tls-cert", "/etc/shop/server.crt"})
	require.NoError(t, err)
	assert.Equal(t, "/etc/shop/ca.crt", o.CAFile)
	assert.Equal(t, "/etc/shop/server.crt", o.TLSCert)
	assert.Equal(t, "/etc/shop/server.key", o.TLSKey)
	assert.True(t, o.TLSEnabled())

	o.TLSKey = ""
	assert.False(t, o.TLSEnabled())
}
