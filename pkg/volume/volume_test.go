package volume

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
}

func TestDirVolumeOpenRoot(t *testing.T) {
	dir := t.TempDir()
	root, err := DirVolume{Dir: dir}.OpenRoot()
	require.NoError(t, err)
	defer root.Close()
}

func TestDirVolumeMissingRoot(t *testing.T) {
	_, err := DirVolume{Dir: "/nonexistent/bootsum-root"}.OpenRoot()
	assert.Error(t, err)
}

func TestDirVolumeRootNotDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err := DirVolume{Dir: file}.OpenRoot()
	assert.Error(t, err)
}

func TestRootOpenAndRead(t *testing.T) {
	dir := t.TempDir()
	makeTree(t, dir, map[string]string{
		"efi/boot/bootx64.efi": "loader bytes",
	})

	root, err := DirVolume{Dir: dir}.OpenRoot()
	require.NoError(t, err)
	defer root.Close()

	f, err := root.Open(filepath.FromSlash("efi/boot/bootx64.efi"))
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "loader bytes", string(data))
}

func TestRootOpenMissing(t *testing.T) {
	dir := t.TempDir()
	root, err := DirVolume{Dir: dir}.OpenRoot()
	require.NoError(t, err)
	defer root.Close()

	_, err = root.Open("absent.txt")
	assert.Error(t, err)
}

func TestRootOpenDirectory(t *testing.T) {
	dir := t.TempDir()
	makeTree(t, dir, map[string]string{"sub/file.txt": "x"})

	root, err := DirVolume{Dir: dir}.OpenRoot()
	require.NoError(t, err)
	defer root.Close()

	_, err = root.Open("sub")
	assert.Error(t, err)
}

func TestRootOpenEscape(t *testing.T) {
	dir := t.TempDir()
	root, err := DirVolume{Dir: dir}.OpenRoot()
	require.NoError(t, err)
	defer root.Close()

	_, err = root.Open(filepath.FromSlash("../outside.txt"))
	assert.Error(t, err)
}

func TestRootSize(t *testing.T) {
	dir := t.TempDir()
	makeTree(t, dir, map[string]string{"data.bin": "12345"})

	root, err := DirVolume{Dir: dir}.OpenRoot()
	require.NoError(t, err)
	defer root.Close()

	n, ok := root.Size("data.bin")
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)

	_, ok = root.Size("absent.bin")
	assert.False(t, ok)

	_, ok = root.Size(filepath.FromSlash("../escape"))
	assert.False(t, ok)
}
