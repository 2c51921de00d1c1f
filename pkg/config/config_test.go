package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bootsum.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "md5sum.txt", cfg.Manifest)
	assert.Equal(t, 1024, cfg.ChunkKiB)
	assert.Equal(t, 1<<20, cfg.ChunkBytes())
	assert.False(t, cfg.Unattended)
	assert.False(t, cfg.Loader.Enabled)
	assert.Equal(t, 3, cfg.Loader.CountdownSec)
	assert.Equal(t, "auto", cfg.Console.Color)
	assert.Equal(t, "", cfg.Relay.URL)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
manifest = "checksums.md5"
chunk_kib = 64
unattended = true

[loader]
enabled = true
path = "/boot/next.efi"
countdown_sec = 10

[relay]
url = "ws://collector:8618"
token = "s3cret"

[console]
color = "never"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "checksums.md5", cfg.Manifest)
	assert.Equal(t, 64, cfg.ChunkKiB)
	assert.Equal(t, 64<<10, cfg.ChunkBytes())
	assert.True(t, cfg.Unattended)
	assert.True(t, cfg.Loader.Enabled)
	assert.Equal(t, "/boot/next.efi", cfg.Loader.Path)
	assert.Equal(t, 10, cfg.Loader.CountdownSec)
	assert.Equal(t, "ws://collector:8618", cfg.Relay.URL)
	assert.Equal(t, "s3cret", cfg.Relay.Token)
	assert.Equal(t, "never", cfg.Console.Color)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `chunk_kib = 256`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.ChunkKiB)
	assert.Equal(t, "md5sum.txt", cfg.Manifest)
	assert.Equal(t, "auto", cfg.Console.Color)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadUnknownKey(t *testing.T) {
	path := writeConfig(t, `mainfest = "typo.txt"`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestLoadInvalidValues(t *testing.T) {
	for _, content := range []string{
		`chunk_kib = 0`,
		`chunk_kib = -1`,
		`manifest = ""`,
		"[loader]\ncountdown_sec = -2",
		"[console]\ncolor = \"sometimes\"",
	} {
		path := writeConfig(t, content)
		_, err := Load(path)
		assert.Error(t, err, "content %q", content)
	}
}

func TestEnvTokenOverride(t *testing.T) {
	path := writeConfig(t, "[relay]\ntoken = \"from-file\"")
	t.Setenv("BOOTSUM_RELAY_TOKEN", "from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Relay.Token)
}

func TestEnvTokenWithoutFile(t *testing.T) {
	t.Setenv("BOOTSUM_RELAY_TOKEN", "env-only")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.Relay.Token)
}
