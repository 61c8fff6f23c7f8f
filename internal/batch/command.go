package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/centralpkg/cpmig/internal/migrate"
	"github.com/centralpkg/cpmig/internal/resolve"
	"github.com/centralpkg/cpmig/internal/shared"
)

const (
	batchUseConstant                  = "batch [path]"
	batchShortDescriptionConstant     = "Migrate every solution found beneath a parent directory"
	batchLongDescriptionConstant      = "batch discovers independent solutions or standalone projects beneath a parent directory and migrates each one to central package management."
	flagStrategyNameConstant          = "strategy"
	flagStrategyDescriptionTemplate   = "Conflict resolution strategy (%s)"
	flagDryRunNameConstant            = "dry-run"
	flagDryRunDescriptionConstant     = "Preview all changes without writing any file"
	flagNoBackupNameConstant          = "no-backup"
	flagNoBackupDescriptionConstant   = "Skip backup creation before rewriting files"
	flagMergeNameConstant             = "merge"
	flagMergeDescriptionConstant      = "Union entries from existing central manifests"
	flagAssumeYesNameConstant         = "assume-yes"
	flagAssumeYesDescriptionConstant  = "Answer yes to every confirmation prompt"
	flagJSONNameConstant              = "json"
	flagJSONDescriptionConstant       = "Emit the batch result as JSON on standard output"
	flagParallelNameConstant          = "parallel"
	flagParallelDescriptionConstant   = "Migrate discovered units concurrently"
	flagContinueNameConstant          = "continue-on-failure"
	flagContinueDescriptionConstant   = "Process remaining units after a unit fails"
	flagExcludeNameConstant           = "exclude"
	flagExcludeDescriptionConstant    = "Directory name to skip during unit discovery (repeatable)"
	flagTransitiveNameConstant        = "analyze-transitive"
	flagTransitiveDescriptionConstant = "Flag direct references already satisfied transitively"
	defaultParentRootConstant         = "."
	jsonMarshalFailedTemplateConstant = "unable to encode batch result: %w"
	strategyChoiceSeparatorConstant   = ", "
)

// BatchConfigurationProvider supplies the effective batch configuration.
type BatchConfigurationProvider func() CommandConfiguration

// MigrateConfigurationProvider supplies the effective per-unit migration configuration.
type MigrateConfigurationProvider func() migrate.CommandConfiguration

// CommandBuilder assembles the Cobra command for batch migration.
type CommandBuilder struct {
	LoggerProvider               migrate.LoggerProvider
	ConfigurationProvider        BatchConfigurationProvider
	MigrateConfigurationProvider MigrateConfigurationProvider
	Discoverer                   UnitDiscoverer
	UnitRunner                   UnitRunner
}

// Build constructs the batch command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:          batchUseConstant,
		Short:        batchShortDescriptionConstant,
		Long:         batchLongDescriptionConstant,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         builder.run,
	}

	configuration := builder.resolveConfiguration()
	migrateConfiguration := builder.resolveMigrateConfiguration()
	strategyDescription := fmt.Sprintf(flagStrategyDescriptionTemplate, strings.Join(resolve.KnownStrategies(), strategyChoiceSeparatorConstant))

	command.Flags().String(flagStrategyNameConstant, migrateConfiguration.Strategy, strategyDescription)
	command.Flags().Bool(flagDryRunNameConstant, false, flagDryRunDescriptionConstant)
	command.Flags().Bool(flagNoBackupNameConstant, false, flagNoBackupDescriptionConstant)
	command.Flags().Bool(flagMergeNameConstant, false, flagMergeDescriptionConstant)
	command.Flags().Bool(flagAssumeYesNameConstant, false, flagAssumeYesDescriptionConstant)
	command.Flags().Bool(flagJSONNameConstant, false, flagJSONDescriptionConstant)
	command.Flags().Bool(flagParallelNameConstant, configuration.Parallel, flagParallelDescriptionConstant)
	command.Flags().Bool(flagContinueNameConstant, configuration.ContinueOnFailure, flagContinueDescriptionConstant)
	command.Flags().StringSlice(flagExcludeNameConstant, configuration.ExcludedDirectories, flagExcludeDescriptionConstant)
	command.Flags().Bool(flagTransitiveNameConstant, false, flagTransitiveDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	options := builder.parseOptions(command, arguments)
	logger := builder.resolveLogger()
	jsonOutput, _ := command.Flags().GetBool(flagJSONNameConstant)

	reporterOutput := command.OutOrStdout()
	if jsonOutput {
		reporterOutput = command.ErrOrStderr()
	}
	reporter := shared.NewWriterReporter(reporterOutput, command.ErrOrStderr())

	service, serviceError := NewService(ServiceDependencies{
		Logger:     logger,
		Reporter:   reporter,
		Discoverer: builder.resolveDiscoverer(),
		UnitRunner: builder.resolveUnitRunner(command, logger, jsonOutput),
	})
	if serviceError != nil {
		return serviceError
	}

	result, runError := service.Execute(command.Context(), options)

	if jsonOutput {
		encodedResult, marshalError := json.MarshalIndent(result, "", "  ")
		if marshalError != nil {
			return fmt.Errorf(jsonMarshalFailedTemplateConstant, marshalError)
		}
		fmt.Fprintln(command.OutOrStdout(), string(encodedResult))
	}

	if runError != nil || result.ExitCode != migrate.ExitCodeSuccess {
		return migrate.ExitError{Code: result.ExitCode}
	}

	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command, arguments []string) Options {
	parentRoot := defaultParentRootConstant
	if len(arguments) > 0 && len(strings.TrimSpace(arguments[0])) > 0 {
		parentRoot = strings.TrimSpace(arguments[0])
	}

	_ = builder.resolveConfiguration()
	migrateConfiguration := builder.resolveMigrateConfiguration()

	strategyValue, _ := command.Flags().GetString(flagStrategyNameConstant)
	dryRunValue, _ := command.Flags().GetBool(flagDryRunNameConstant)
	noBackupValue, _ := command.Flags().GetBool(flagNoBackupNameConstant)
	mergeValue, _ := command.Flags().GetBool(flagMergeNameConstant)
	assumeYesValue, _ := command.Flags().GetBool(flagAssumeYesNameConstant)
	parallelValue, _ := command.Flags().GetBool(flagParallelNameConstant)
	continueValue, _ := command.Flags().GetBool(flagContinueNameConstant)
	excludeValues, _ := command.Flags().GetStringSlice(flagExcludeNameConstant)
	transitiveValue, _ := command.Flags().GetBool(flagTransitiveNameConstant)

	unitOptions := migrate.Options{
		Mode:                migrate.RunModeMigrate,
		Strategy:            resolve.Strategy(strings.TrimSpace(strategyValue)),
		DryRun:              dryRunValue,
		BackupsEnabled:      !noBackupValue,
		BackupDirectoryName: migrateConfiguration.BackupDirectory,
		MergeExisting:       mergeValue,
		AnalyzeTransitive:   transitiveValue,
		ManageIgnoreFile:    migrateConfiguration.IgnoreFileManaged,
		VerifyRestore:       migrateConfiguration.VerifyRestore,
		AssumeYes:           assumeYesValue,
	}

	return Options{
		ParentRoot:          parentRoot,
		ExcludedDirectories: excludeValues,
		Parallel:            parallelValue,
		ContinueOnFailure:   continueValue,
		UnitOptions:         unitOptions,
	}
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveMigrateConfiguration() migrate.CommandConfiguration {
	if builder.MigrateConfigurationProvider == nil {
		return migrate.DefaultCommandConfiguration()
	}
	return builder.MigrateConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveDiscoverer() UnitDiscoverer {
	if builder.Discoverer != nil {
		return builder.Discoverer
	}
	return NewFilesystemUnitDiscoverer()
}

// resolveUnitRunner wires the production migration service as the unit of
// work. Interactive prompting is disabled for batch units; conflicts resolve
// through the configured strategy.
func (builder *CommandBuilder) resolveUnitRunner(command *cobra.Command, logger *zap.Logger, jsonOutput bool) UnitRunner {
	if builder.UnitRunner != nil {
		return builder.UnitRunner
	}

	var configurationProvider migrate.ConfigurationProvider
	if builder.MigrateConfigurationProvider != nil {
		provider := builder.MigrateConfigurationProvider
		configurationProvider = func() migrate.CommandConfiguration { return provider() }
	}

	migrateBuilder := &migrate.CommandBuilder{
		LoggerProvider:        func() *zap.Logger { return logger },
		ConfigurationProvider: configurationProvider,
	}

	return migrateBuilder.UnitRunner(command, jsonOutput)
}
