package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/centralpkg/cpmig/internal/utils"
)

type configurationFixture struct {
	Common configurationCommonFixture `mapstructure:"common"`
	Tools  configurationToolsFixture  `mapstructure:"tools"`
}

type configurationCommonFixture struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type configurationToolsFixture struct {
	Migrate configurationMigrateFixture `mapstructure:"migrate"`
	Batch   configurationBatchFixture   `mapstructure:"batch"`
}

type configurationMigrateFixture struct {
	Strategy        string `mapstructure:"strategy"`
	BackupDirectory string `mapstructure:"backup_directory"`
}

type configurationBatchFixture struct {
	ExcludedDirectories []string `mapstructure:"excluded_directories"`
	Parallel            bool     `mapstructure:"parallel"`
}

const embeddedConfigurationFixtureConstant = `common:
  log_level: info
  log_format: structured
tools:
  migrate:
    strategy: highest
    backup_directory: .cpmig-backups
`

const fileConfigurationFixtureConstant = `common:
  log_level: debug
tools:
  migrate:
    strategy: lowest
  batch:
    excluded_directories:
      - Archived
      - Vendored
    parallel: true
`

func newFixtureLoader() *utils.ConfigurationLoader {
	return utils.NewConfigurationLoader("config", "yaml", "CPMIG", []string{"."})
}

func TestLoadConfigurationLayersFileOverEmbeddedDefaults(t *testing.T) {
	configurationDirectory := t.TempDir()
	configurationFilePath := filepath.Join(configurationDirectory, "config.yaml")
	require.NoError(t, os.WriteFile(configurationFilePath, []byte(fileConfigurationFixtureConstant), 0o644))

	loader := newFixtureLoader()
	loader.SetEmbeddedConfiguration([]byte(embeddedConfigurationFixtureConstant))

	var configuration configurationFixture
	loadedConfiguration, loadError := loader.LoadConfiguration(configurationFilePath, nil, &configuration)
	require.NoError(t, loadError)
	require.Equal(t, configurationFilePath, loadedConfiguration.ConfigFileUsed)

	require.Equal(t, "debug", configuration.Common.LogLevel)
	require.Equal(t, "structured", configuration.Common.LogFormat)
	require.Equal(t, "lowest", configuration.Tools.Migrate.Strategy)
	require.Equal(t, ".cpmig-backups", configuration.Tools.Migrate.BackupDirectory)
	require.Equal(t, []string{"Archived", "Vendored"}, configuration.Tools.Batch.ExcludedDirectories)
	require.True(t, configuration.Tools.Batch.Parallel)
}

func TestLoadConfigurationWithoutFileUsesEmbeddedDefaults(t *testing.T) {
	loader := newFixtureLoader()
	loader.SetEmbeddedConfiguration([]byte(embeddedConfigurationFixtureConstant))

	var configuration configurationFixture
	_, loadError := loader.LoadConfiguration("", nil, &configuration)
	require.NoError(t, loadError)

	require.Equal(t, "info", configuration.Common.LogLevel)
	require.Equal(t, "highest", configuration.Tools.Migrate.Strategy)
}

func TestLoadConfigurationEnvironmentOverride(t *testing.T) {
	t.Setenv("CPMIG_COMMON_LOG_LEVEL", "warn")

	loader := newFixtureLoader()
	loader.SetEmbeddedConfiguration([]byte(embeddedConfigurationFixtureConstant))

	var configuration configurationFixture
	_, loadError := loader.LoadConfiguration("", nil, &configuration)
	require.NoError(t, loadError)

	require.Equal(t, "warn", configuration.Common.LogLevel)
}

func TestLoadConfigurationDefaultsApplyBeneathEverything(t *testing.T) {
	loader := newFixtureLoader()

	defaultValues := map[string]any{
		"tools.batch.parallel": true,
	}

	var configuration configurationFixture
	_, loadError := loader.LoadConfiguration("", defaultValues, &configuration)
	require.NoError(t, loadError)

	require.True(t, configuration.Tools.Batch.Parallel)
}

func TestLoadConfigurationRejectsMalformedFile(t *testing.T) {
	configurationDirectory := t.TempDir()
	configurationFilePath := filepath.Join(configurationDirectory, "config.yaml")
	require.NoError(t, os.WriteFile(configurationFilePath, []byte("common: [unclosed"), 0o644))

	loader := newFixtureLoader()

	var configuration configurationFixture
	_, loadError := loader.LoadConfiguration(configurationFilePath, nil, &configuration)
	require.Error(t, loadError)
}
