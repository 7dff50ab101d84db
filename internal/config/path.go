package config

import (
	"os"
	"path/filepath"
)

// DefaultConfigPath returns the first existing configuration file among the
// standard locations, or "" if there is none.
func DefaultConfigPath() string {
	for _, dir := range configDirs() {
		for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
			p := filepath.Join(dir, name)
			if isFile(p) {
				return p
			}
		}
	}
	return ""
}

func configDirs() []string {
	var dirs []string
	// XDG (Linux) override
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, "multiflow"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dirs = append(dirs, filepath.Join(home, ".config", "multiflow"), filepath.Join(home, ".multiflow"))
	}
	return append(dirs, "/etc/multiflow")
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
