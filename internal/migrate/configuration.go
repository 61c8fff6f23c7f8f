package migrate

import (
	"strings"

	"github.com/centralpkg/cpmig/internal/resolve"
)

// DefaultBackupDirectoryNameConstant is the backup directory created beneath
// the solution root when no override is configured.
const DefaultBackupDirectoryNameConstant = ".cpmig-backups"

// CommandConfiguration captures configuration values for migration commands.
type CommandConfiguration struct {
	Strategy          string `mapstructure:"strategy"`
	BackupDirectory   string `mapstructure:"backup_directory"`
	IgnoreFileManaged bool   `mapstructure:"ignore_file_managed"`
	VerifyRestore     bool   `mapstructure:"verify_restore"`
}

// DefaultCommandConfiguration provides baseline configuration values for migration commands.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Strategy:          string(resolve.StrategyHighest),
		BackupDirectory:   DefaultBackupDirectoryNameConstant,
		IgnoreFileManaged: true,
		VerifyRestore:     false,
	}
}

// Sanitize trims configuration values and restores defaults for empty fields.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration

	sanitized.Strategy = strings.TrimSpace(configuration.Strategy)
	if len(sanitized.Strategy) == 0 {
		sanitized.Strategy = string(resolve.StrategyHighest)
	}

	sanitized.BackupDirectory = strings.TrimSpace(configuration.BackupDirectory)
	if len(sanitized.BackupDirectory) == 0 {
		sanitized.BackupDirectory = DefaultBackupDirectoryNameConstant
	}

	return sanitized
}
