package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadSettings_PrefersUserConfigOverLocal(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	workdir := t.TempDir()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(workdir))
	t.Cleanup(func() { _ = os.Chdir(oldwd) })

	userConfigPath := filepath.Join(home, ".config", "raidme", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userConfigPath), 0o755))
	require.NoError(t, os.WriteFile(userConfigPath, []byte("store:\n  path: /tmp/from-user.db\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(workdir, "config.yaml"), []byte("store:\n  path: /tmp/from-local.db\n"), 0o600))

	s, err := LoadSettings()
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-user.db", s.Store.Path)
}

func TestLoadSettings_FallsBackToLocalConfig(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	workdir := t.TempDir()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(workdir))
	t.Cleanup(func() { _ = os.Chdir(oldwd) })

	require.NoError(t, os.WriteFile(filepath.Join(workdir, "config.yaml"), []byte("store:\n  path: /tmp/from-local.db\n"), 0o600))

	s, err := LoadSettings()
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-local.db", s.Store.Path)
}

func TestLoadSettings_InvalidYAMLReturnsError(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	userConfigPath := filepath.Join(home, ".config", "raidme", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userConfigPath), 0o755))
	require.NoError(t, os.WriteFile(userConfigPath, []byte("store: ["), 0o600))

	_, err := LoadSettings()
	require.Error(t, err)
}

func TestLoadSettingsFile_ReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  path: /tmp/read.db\n"), 0o600))

	s, err := loadSettingsFile(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/read.db", s.Store.Path)
}

func TestLoadSettingsFile_ReadsModelAndRepoFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "model:\n" +
		"  provider: stub\n" +
		"  deadline_seconds: 30\n" +
		"  parse_retries: 3\n" +
		"repo:\n" +
		"  max_depth: 6\n" +
		"  ignore_globs:\n" +
		"    - \"*.lock\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := loadSettingsFile(path)
	require.NoError(t, err)
	require.Equal(t, "stub", s.Model.Provider)
	require.Equal(t, 30, s.Model.DeadlineSeconds)
	require.Equal(t, 3, s.Model.ParseRetries)
	require.Equal(t, 6, s.Repo.MaxDepth)
	require.Equal(t, []string{"*.lock"}, s.Repo.IgnoreGlobs)
}

func TestSettings_WithDefaults_FillsEveryUnsetField(t *testing.T) {
	s := Settings{}.WithDefaults()
	require.Equal(t, defaultModelProvider, s.Model.Provider)
	require.Equal(t, defaultModelName, s.Model.Name)
	require.Equal(t, defaultModelDeadlineSeconds, s.Model.DeadlineSeconds)
	require.Equal(t, defaultModelMaxRetries, s.Model.MaxRetries)
	require.Equal(t, defaultModelParseRetries, s.Model.ParseRetries)
	require.Equal(t, defaultRepoMaxDepth, s.Repo.MaxDepth)
	require.Equal(t, defaultRepoFileHeadBytes, s.Repo.FileHeadBytes)
	require.Equal(t, defaultRepoDirPayloadBytes, s.Repo.DirPayloadBytes)
	require.Equal(t, defaultContextTokenCeiling, s.Context.TokenCeiling)
	require.Equal(t, defaultOutputPath, s.Output.Path)
	require.Equal(t, defaultStorePath, s.Store.Path)
}

func TestSettings_WithDefaults_PreservesExplicitValues(t *testing.T) {
	s := Settings{Model: ModelSettings{Provider: "stub", DeadlineSeconds: 9}}.WithDefaults()
	require.Equal(t, "stub", s.Model.Provider)
	require.Equal(t, 9, s.Model.DeadlineSeconds)
	require.Equal(t, defaultModelName, s.Model.Name) // untouched fields still default
}
