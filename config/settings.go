package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Settings are the user-tunable knobs loaded from settings.toml in the app
// data directory. Zero values fall back to the package defaults above.
type Settings struct {
	SearchLimit    int   `toml:"search_limit"`
	ExtractWorkers int   `toml:"extract_workers"`
	MaxCacheMB     int64 `toml:"max_cache_mb"`
}

// DefaultSettings returns the settings used when no settings.toml exists.
func DefaultSettings() Settings {
	return Settings{
		SearchLimit:    50,
		ExtractWorkers: 0, // 0 = derive from hardware parallelism
		MaxCacheMB:     MaxCacheBytes / (1024 * 1024),
	}
}

// LoadSettings reads settings.toml from appDir. A missing file yields the
// defaults; a malformed file is an error so bad config never fails silently.
func LoadSettings(appDir string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(filepath.Join(appDir, "settings.toml"))
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}

	if err := toml.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), err
	}
	if s.SearchLimit <= 0 {
		s.SearchLimit = DefaultSettings().SearchLimit
	}
	if s.MaxCacheMB <= 0 {
		s.MaxCacheMB = DefaultSettings().MaxCacheMB
	}
	return s, nil
}

// SaveSettings writes settings.toml to appDir, creating the directory if needed.
func SaveSettings(appDir string, s Settings) error {
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(appDir, "settings.toml"), data, 0o644)
}

// AppDir resolves the per-user data directory for the library, creating it
// on first use. QUIETLIBRARY_DIR overrides for tests and portable installs.
func AppDir() (string, error) {
	if dir := os.Getenv("QUIETLIBRARY_DIR"); dir != "" {
		return dir, os.MkdirAll(dir, 0o755)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "quietlibrary")
	return dir, os.MkdirAll(dir, 0o755)
}
