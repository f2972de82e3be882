// Package config loads the optional per-project lumen.toml: import search
// paths, whether to retain debug info in compiled bytecode, and the GC
// threshold. Absence of the file is not an error — Default() supplies every
// field the teacher's own zero-config CLI would otherwise hardcode.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the decoded shape of lumen.toml.
type Config struct {
	Import struct {
		Paths []string `toml:"paths"`
	} `toml:"import"`
	Debug struct {
		KeepDebugInfo bool `toml:"keep_debug_info"`
	} `toml:"debug"`
	GC struct {
		ThresholdBytes int `toml:"threshold_bytes"`
	} `toml:"gc"`
	CacheDir string `toml:"cache_dir"`
}

// Default returns the configuration used when no lumen.toml is found.
func Default() *Config {
	c := &Config{}
	c.Debug.KeepDebugInfo = true
	c.GC.ThresholdBytes = 1 << 20
	c.CacheDir = ".lumen-cache"
	return c
}

// Load searches dir and its ancestors for lumen.toml, returning Default()
// unchanged if none is found. A malformed file that does exist is an error.
func Load(dir string) (*Config, error) {
	path, ok := findConfigFile(dir)
	if !ok {
		return Default(), nil
	}
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile(startDir string) (string, bool) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, "lumen.toml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
