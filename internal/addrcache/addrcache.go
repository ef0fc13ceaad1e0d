// Package addrcache persists the address of the last-connected treadmill so
// the next run can dial it directly instead of scanning.
package addrcache

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const fileName = "device_address.json"

// Record is the on-disk shape of the cache file.
type Record struct {
	Address string `json:"address"`
}

// Cache reads and writes the cached device address. Every failure is logged
// and swallowed: a broken cache only costs one extra scan.
type Cache struct {
	dir    string
	logger *logrus.Logger
}

// New returns a cache rooted at the platform cache directory.
func New(logger *logrus.Logger) *Cache {
	return NewAt(Dir(), logger)
}

// NewAt returns a cache rooted at dir.
func NewAt(dir string, logger *logrus.Logger) *Cache {
	if logger == nil {
		logger = logrus.New()
	}
	return &Cache{dir: dir, logger: logger}
}

// Dir resolves the cache directory. XDG_CACHE_HOME is honored everywhere,
// otherwise the platform convention applies.
func Dir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "fitctrl")
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, "Library", "Caches", "fitctrl")
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, "fitctrl")
		}
		if dir := os.Getenv("APPDATA"); dir != "" {
			return filepath.Join(dir, "fitctrl")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, "AppData", "Roaming", "fitctrl")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, ".cache", "fitctrl")
	}
}

func (c *Cache) path() string {
	if c.dir == "" {
		return ""
	}
	return filepath.Join(c.dir, fileName)
}

// Load returns the cached address. ok is false when no usable address is
// cached for any reason.
func (c *Cache) Load() (address string, ok bool) {
	path := c.path()
	if path == "" {
		return "", false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.WithField("error", err).Warn("Failed to load cached address")
		}
		return "", false
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		c.logger.WithField("error", err).Warn("Failed to load cached address")
		return "", false
	}
	if strings.TrimSpace(record.Address) == "" {
		return "", false
	}
	return record.Address, true
}

// Save writes address to the cache file, creating the cache directory as
// needed. The file is user-only; it identifies hardware in the home.
func (c *Cache) Save(address string) {
	path := c.path()
	if path == "" {
		c.logger.Warn("Failed to save cached address: no cache directory")
		return
	}

	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		c.logger.WithField("error", err).Warn("Failed to save cached address")
		return
	}

	data, err := json.MarshalIndent(Record{Address: address}, "", "  ")
	if err != nil {
		c.logger.WithField("error", err).Warn("Failed to save cached address")
		return
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		c.logger.WithField("error", err).Warn("Failed to save cached address")
		return
	}
	c.logger.WithField("address", address).Info("Cached device address")
}

// Clear removes the cache file. Removing an absent file is a no-op.
func (c *Cache) Clear() {
	path := c.path()
	if path == "" {
		return
	}

	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			c.logger.WithField("error", err).Warn("Failed to clear cached address")
		}
		return
	}
	c.logger.Info("Cleared cached device address")
}
