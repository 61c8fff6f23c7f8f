package cli_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/centralpkg/cpmig/cmd/cli"
)

func TestEmbeddedDefaultConfigurationParses(t *testing.T) {
	configurationContent, configurationError := cli.EmbeddedDefaultConfiguration()
	require.NoError(t, configurationError)

	var parsedConfiguration struct {
		Common struct {
			LogLevel  string `yaml:"log_level"`
			LogFormat string `yaml:"log_format"`
		} `yaml:"common"`
		Tools struct {
			Migrate struct {
				Strategy          string `yaml:"strategy"`
				BackupDirectory   string `yaml:"backup_directory"`
				IgnoreFileManaged bool   `yaml:"ignore_file_managed"`
			} `yaml:"migrate"`
			Batch struct {
				Parallel bool `yaml:"parallel"`
			} `yaml:"batch"`
		} `yaml:"tools"`
	}
	require.NoError(t, yaml.Unmarshal(configurationContent, &parsedConfiguration))

	require.Equal(t, "info", parsedConfiguration.Common.LogLevel)
	require.Equal(t, "structured", parsedConfiguration.Common.LogFormat)
	require.Equal(t, "highest", parsedConfiguration.Tools.Migrate.Strategy)
	require.Equal(t, ".cpmig-backups", parsedConfiguration.Tools.Migrate.BackupDirectory)
	require.True(t, parsedConfiguration.Tools.Migrate.IgnoreFileManaged)
	require.False(t, parsedConfiguration.Tools.Batch.Parallel)
}

func TestEmbeddedDefaultConfigurationReturnsCopy(t *testing.T) {
	firstContent, firstError := cli.EmbeddedDefaultConfiguration()
	require.NoError(t, firstError)

	firstContent[0] = '#'

	secondContent, secondError := cli.EmbeddedDefaultConfiguration()
	require.NoError(t, secondError)
	require.NotEqual(t, firstContent[0], secondContent[0])
}
