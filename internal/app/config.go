package app

import (
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.config/raidme/ on all platforms.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "raidme"), nil
}

// EnsureConfigDir creates the config directory and default config.yaml if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return nil
}

const defaultConfig = `# raidme configuration
# Run: raidme --help

# model:
#   provider: cli
#   name: claude
#   deadline_seconds: 120
#   max_retries: 5
#   parse_retries: 2

# repo:
#   max_depth: 4
#   file_head_bytes: 4000
#   dir_payload_bytes: 16000

# context:
#   token_ceiling: 8000

# output:
#   path: KNOWLEDGE.md

# store:
#   path: .raidme/state.db
`
