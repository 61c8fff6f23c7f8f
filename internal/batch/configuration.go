package batch

import "strings"

// CommandConfiguration captures configuration values for the batch command.
type CommandConfiguration struct {
	ExcludedDirectories []string `mapstructure:"excluded_directories"`
	Parallel            bool     `mapstructure:"parallel"`
	ContinueOnFailure   bool     `mapstructure:"continue_on_failure"`
}

// DefaultCommandConfiguration provides baseline configuration values for batch runs.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		ExcludedDirectories: nil,
		Parallel:            false,
		ContinueOnFailure:   false,
	}
}

// Sanitize trims configuration values and restores defaults for empty fields.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration

	sanitized.ExcludedDirectories = make([]string, 0, len(configuration.ExcludedDirectories))
	for _, excludedDirectory := range configuration.ExcludedDirectories {
		trimmedDirectory := strings.TrimSpace(excludedDirectory)
		if len(trimmedDirectory) > 0 {
			sanitized.ExcludedDirectories = append(sanitized.ExcludedDirectories, trimmedDirectory)
		}
	}

	return sanitized
}
