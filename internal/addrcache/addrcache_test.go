package addrcache

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestCacheRoundTrip(t *testing.T) {
	// GOAL: Verify a saved address loads back unchanged and the file lands
	// with user-only permissions
	//
	// TEST SCENARIO: Save an address into a fresh directory → load it →
	// verify the string, the JSON shape, and the file mode
	dir := t.TempDir()
	cache := NewAt(dir, testLogger())

	cache.Save("aa:bb:cc:dd:ee:01")

	address, ok := cache.Load()
	require.True(t, ok, "a freshly saved address MUST load")
	assert.Equal(t, "aa:bb:cc:dd:ee:01", address)

	data, err := os.ReadFile(filepath.Join(dir, "device_address.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"address\": \"aa:bb:cc:dd:ee:01\"\n}", string(data))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dir, "device_address.json"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestCacheCreatesDirectory(t *testing.T) {
	// GOAL: Verify Save creates missing cache directories instead of failing
	//
	// TEST SCENARIO: Root the cache at a nested path that does not exist →
	// save → verify the load round-trip and the directory mode
	dir := filepath.Join(t.TempDir(), "nested", "fitctrl")
	cache := NewAt(dir, testLogger())

	cache.Save("aa:bb:cc:dd:ee:02")

	address, ok := cache.Load()
	require.True(t, ok)
	assert.Equal(t, "aa:bb:cc:dd:ee:02", address)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	}
}

func TestCacheOverwrite(t *testing.T) {
	cache := NewAt(t.TempDir(), testLogger())

	cache.Save("aa:bb:cc:dd:ee:01")
	cache.Save("ff:ee:dd:cc:bb:aa")

	address, ok := cache.Load()
	require.True(t, ok)
	assert.Equal(t, "ff:ee:dd:cc:bb:aa", address, "the newest save MUST win")
}

func TestCacheLoadDegradesToNotCached(t *testing.T) {
	// GOAL: Verify every unusable cache state reads as not-cached rather than
	// an error
	//
	// TEST SCENARIO: Load against a missing file, malformed JSON, and blank
	// addresses → verify ok=false each time
	t.Run("MissingFile", func(t *testing.T) {
		cache := NewAt(t.TempDir(), testLogger())
		_, ok := cache.Load()
		assert.False(t, ok)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "device_address.json"), []byte("{not json"), 0o600))

		_, ok := NewAt(dir, testLogger()).Load()
		assert.False(t, ok, "a corrupt cache file MUST read as not-cached")
	})

	t.Run("EmptyAddress", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "device_address.json"), []byte(`{"address": ""}`), 0o600))

		_, ok := NewAt(dir, testLogger()).Load()
		assert.False(t, ok)
	})

	t.Run("BlankAddress", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "device_address.json"), []byte(`{"address": "   "}`), 0o600))

		_, ok := NewAt(dir, testLogger()).Load()
		assert.False(t, ok)
	})
}

func TestCacheClear(t *testing.T) {
	// GOAL: Verify Clear removes the cached address and tolerates an already
	// absent file
	//
	// TEST SCENARIO: Save, clear, load → verify not-cached → clear again →
	// verify no panic
	cache := NewAt(t.TempDir(), testLogger())
	cache.Save("aa:bb:cc:dd:ee:01")

	cache.Clear()
	_, ok := cache.Load()
	assert.False(t, ok, "a cleared address MUST NOT load")

	assert.NotPanics(t, func() { cache.Clear() })
}

func TestDirHonorsXDGCacheHome(t *testing.T) {
	// GOAL: Verify XDG_CACHE_HOME overrides the platform cache location
	//
	// TEST SCENARIO: Point XDG_CACHE_HOME at a temp dir → verify Dir and that
	// New persists beneath it
	root := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", root)

	assert.Equal(t, filepath.Join(root, "fitctrl"), Dir())

	cache := New(testLogger())
	cache.Save("aa:bb:cc:dd:ee:03")

	_, err := os.Stat(filepath.Join(root, "fitctrl", "device_address.json"))
	assert.NoError(t, err, "the cache file MUST live under XDG_CACHE_HOME")
}
