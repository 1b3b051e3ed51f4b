package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings represents configuration loaded from config.yaml, grouped
// the way the YAML document nests them.
type Settings struct {
	Model   ModelSettings   `yaml:"model"`
	Repo    RepoSettings    `yaml:"repo"`
	Context ContextSettings `yaml:"context"`
	Output  OutputSettings  `yaml:"output"`
	Store   StoreSettings   `yaml:"store"`
}

// ModelSettings controls which gateway provider is used and its call
// budget.
type ModelSettings struct {
	Provider        string  `yaml:"provider"`
	Name            string  `yaml:"name"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float64 `yaml:"temperature"`
	DeadlineSeconds int     `yaml:"deadline_seconds"`
	MaxRetries      int     `yaml:"max_retries"`
	ParseRetries    int     `yaml:"parse_retries"`
}

// RepoSettings bounds how much of the repository the Repo View reads.
type RepoSettings struct {
	MaxDepth        int      `yaml:"max_depth"`
	FileHeadBytes   int      `yaml:"file_head_bytes"`
	DirPayloadBytes int      `yaml:"dir_payload_bytes"`
	IgnoreGlobs     []string `yaml:"ignore_globs"`
}

// ContextSettings bounds the prompt context budget.
type ContextSettings struct {
	TokenCeiling int `yaml:"token_ceiling"`
}

// OutputSettings names the knowledge file destination.
type OutputSettings struct {
	Path string `yaml:"path"`
}

// StoreSettings names the SQLite file path.
type StoreSettings struct {
	Path string `yaml:"path"`
}

const (
	defaultModelProvider       = "cli"
	defaultModelName           = "claude"
	defaultModelMaxTokens      = 4096
	defaultModelTemperature    = 0.2
	defaultModelDeadlineSeconds = 120
	defaultModelMaxRetries     = 5
	defaultModelParseRetries   = 2
	defaultRepoMaxDepth        = 4
	defaultRepoFileHeadBytes   = 4000
	defaultRepoDirPayloadBytes = 16000
	defaultContextTokenCeiling = 8000
	defaultOutputPath          = "KNOWLEDGE.md"
	defaultStorePath           = ".raidme/state.db"
)

// WithDefaults returns a copy of s with every unset field filled in
// from the package's built-in defaults.
func (s Settings) WithDefaults() Settings {
	out := s

	if out.Model.Provider == "" {
		out.Model.Provider = defaultModelProvider
	}
	if out.Model.Name == "" {
		out.Model.Name = defaultModelName
	}
	if out.Model.MaxTokens == 0 {
		out.Model.MaxTokens = defaultModelMaxTokens
	}
	if out.Model.Temperature == 0 {
		out.Model.Temperature = defaultModelTemperature
	}
	if out.Model.DeadlineSeconds == 0 {
		out.Model.DeadlineSeconds = defaultModelDeadlineSeconds
	}
	if out.Model.MaxRetries == 0 {
		out.Model.MaxRetries = defaultModelMaxRetries
	}
	if out.Model.ParseRetries == 0 {
		out.Model.ParseRetries = defaultModelParseRetries
	}
	if out.Repo.MaxDepth == 0 {
		out.Repo.MaxDepth = defaultRepoMaxDepth
	}
	if out.Repo.FileHeadBytes == 0 {
		out.Repo.FileHeadBytes = defaultRepoFileHeadBytes
	}
	if out.Repo.DirPayloadBytes == 0 {
		out.Repo.DirPayloadBytes = defaultRepoDirPayloadBytes
	}
	if out.Context.TokenCeiling == 0 {
		out.Context.TokenCeiling = defaultContextTokenCeiling
	}
	if out.Output.Path == "" {
		out.Output.Path = defaultOutputPath
	}
	if out.Store.Path == "" {
		out.Store.Path = defaultStorePath
	}

	return out
}

// settingsOnce, settings, settingsErr implement the sync.Once lazy-load singleton for config.
// dbPathOverrideMu and dbPathOverride implement a mutex-protected process-wide override for CLI --db-path.
// These globals are required by the sync.Once pattern and the RWMutex pattern; they cannot be avoided.
//
//nolint:gochecknoglobals // sync.Once singleton + RWMutex override are intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	dbPathOverrideMu sync.RWMutex
	dbPathOverride   string
)

// SetDBPathOverride sets a process-wide database path override.
// Intended for CLI flag support (e.g. --db-path).
func SetDBPathOverride(path string) {
	dbPathOverrideMu.Lock()
	dbPathOverride = path
	dbPathOverrideMu.Unlock()
}

func getDBPathOverride() string {
	dbPathOverrideMu.RLock()
	v := dbPathOverride
	dbPathOverrideMu.RUnlock()
	return v
}

// LoadSettings loads configuration once using the documented lookup order.
// Lookup order (first found wins):
// 1) ~/.config/raidme/config.yaml
// 2) /etc/raidme/config.yaml
// 3) ./config.yaml (lowest priority; allows repo-local overrides if desired)
// Environment variables and CLI flags are resolved separately, by the caller.
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings = Settings{}

		dir, err := ConfigDir()
		if err != nil {
			settingsErr = err
			return
		}
		if s, err := loadSettingsFile(filepath.Join(dir, "config.yaml")); err == nil {
			settings = s
			return
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}

		if s, err := loadSettingsFile(filepath.Join(string(os.PathSeparator), "etc", "raidme", "config.yaml")); err == nil {
			settings = s
			return
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}

		if s, err := loadSettingsFile("config.yaml"); err == nil {
			settings = s
			return
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}
	})

	return settings, settingsErr
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
