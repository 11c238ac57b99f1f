package filestore

import "github.com/BurntSushi/toml"

// Config holds the filestore's own tunables. It is intentionally small:
// it only covers the reference file-backed Store's own settings, not
// process-level configuration, which belongs to the embedding program.
type Config struct {
	// BaseDir is the directory containing tasks/ and deps/ subdirectories.
	BaseDir string `toml:"base_dir"`

	// Watch enables fsnotify-based detection of external edits to the
	// task/dep files (e.g. a second process, or a human editing JSON by
	// hand) so the in-memory cache is kept current between flushes.
	Watch bool `toml:"watch"`
}

// DefaultConfig returns a Config watching baseDir.
func DefaultConfig(baseDir string) Config {
	return Config{BaseDir: baseDir, Watch: true}
}

// LoadConfig decodes a toml configuration file into a Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}
