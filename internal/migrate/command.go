package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/centralpkg/cpmig/internal/backup"
	"github.com/centralpkg/cpmig/internal/dotnet"
	"github.com/centralpkg/cpmig/internal/graph"
	"github.com/centralpkg/cpmig/internal/project"
	"github.com/centralpkg/cpmig/internal/resolve"
	"github.com/centralpkg/cpmig/internal/shared"
)

const (
	migrateUseConstant                   = "migrate [path]"
	migrateShortDescriptionConstant      = "Move package versions into a central Directory.Packages.props"
	migrateLongDescriptionConstant       = "migrate scans every project beneath the solution root, resolves version conflicts, rewrites project references, and writes the centrally pinned manifest."
	analyzeUseConstant                   = "analyze [path]"
	analyzeShortDescriptionConstant      = "Report conflicts and redundant references without changing files"
	analyzeLongDescriptionConstant       = "analyze performs the read-only half of a migration: it aggregates package versions, reports conflicts and casing mismatches, and flags redundant direct references."
	flagStrategyNameConstant             = "strategy"
	flagStrategyDescriptionTemplate      = "Conflict resolution strategy (%s)"
	flagDryRunNameConstant               = "dry-run"
	flagDryRunDescriptionConstant        = "Preview all changes without writing any file"
	flagNoBackupNameConstant             = "no-backup"
	flagNoBackupDescriptionConstant      = "Skip backup creation before rewriting files"
	flagKeepVersionNameConstant          = "keep-version-attribute"
	flagKeepVersionDescriptionConstant   = "Leave Version attributes on project references untouched"
	flagMergeNameConstant                = "merge"
	flagMergeDescriptionConstant         = "Union entries from an existing central manifest"
	flagTransitiveNameConstant           = "analyze-transitive"
	flagTransitiveDescriptionConstant    = "Flag direct references already satisfied transitively"
	flagAssumeYesNameConstant            = "assume-yes"
	flagAssumeYesDescriptionConstant     = "Answer yes to every confirmation prompt"
	flagJSONNameConstant                 = "json"
	flagJSONDescriptionConstant          = "Emit the run result as JSON on standard output"
	flagVerifyNameConstant               = "verify"
	flagVerifyDescriptionConstant        = "Run dotnet restore after migration to verify the result"
	defaultSolutionRootConstant          = "."
	jsonMarshalFailedTemplateConstant    = "unable to encode run result: %w"
	rollbackOfferPromptTemplateConstant  = "Migration failed; roll back from %s? [y/N]: "
	rollbackOfferSkippedTemplateConstant = "Backups preserved at %s; run 'cpmig rollback' to restore"
	strategyChoiceSeparatorConstant      = ", "
)

// MigrationExecutor runs migrations and retention operations. *Service is the
// production implementation; tests substitute fakes.
type MigrationExecutor interface {
	Execute(executionContext context.Context, options Options) (MigrationResult, error)
	PruneBackupHistory(solutionRoot string, backupDirectoryName string, keepCount int) (ExitCode, error)
	ClearBackupHistory(solutionRoot string, backupDirectoryName string) (ExitCode, error)
}

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the effective migration configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the Cobra commands for migration workflows.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Executor              MigrationExecutor
}

// BuildMigrateCommand constructs the migrate command.
func (builder *CommandBuilder) BuildMigrateCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:          migrateUseConstant,
		Short:        migrateShortDescriptionConstant,
		Long:         migrateLongDescriptionConstant,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, RunModeMigrate)
		},
	}

	builder.registerSharedFlags(command)
	command.Flags().Bool(flagDryRunNameConstant, false, flagDryRunDescriptionConstant)
	command.Flags().Bool(flagNoBackupNameConstant, false, flagNoBackupDescriptionConstant)
	command.Flags().Bool(flagKeepVersionNameConstant, false, flagKeepVersionDescriptionConstant)
	command.Flags().Bool(flagMergeNameConstant, false, flagMergeDescriptionConstant)
	command.Flags().Bool(flagVerifyNameConstant, false, flagVerifyDescriptionConstant)

	return command, nil
}

// BuildAnalyzeCommand constructs the analyze command.
func (builder *CommandBuilder) BuildAnalyzeCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:          analyzeUseConstant,
		Short:        analyzeShortDescriptionConstant,
		Long:         analyzeLongDescriptionConstant,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, RunModeAnalyze)
		},
	}

	builder.registerSharedFlags(command)

	return command, nil
}

func (builder *CommandBuilder) registerSharedFlags(command *cobra.Command) {
	configuration := builder.resolveConfiguration()
	strategyDescription := fmt.Sprintf(flagStrategyDescriptionTemplate, strings.Join(resolve.KnownStrategies(), strategyChoiceSeparatorConstant))

	command.Flags().String(flagStrategyNameConstant, configuration.Strategy, strategyDescription)
	command.Flags().Bool(flagTransitiveNameConstant, false, flagTransitiveDescriptionConstant)
	command.Flags().Bool(flagAssumeYesNameConstant, false, flagAssumeYesDescriptionConstant)
	command.Flags().Bool(flagJSONNameConstant, false, flagJSONDescriptionConstant)
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string, mode RunMode) error {
	configuration := builder.resolveConfiguration()
	options := builder.parseOptions(command, arguments, mode, configuration)
	logger := builder.resolveLogger()
	jsonOutput, _ := command.Flags().GetBool(flagJSONNameConstant)

	executor := builder.resolveExecutor(command, logger, options, jsonOutput)

	result, runError := executor.Execute(command.Context(), options)

	if runError != nil {
		runError = builder.offerRollback(command, executor, options, runError)
	}

	if jsonOutput {
		if encodeError := writeResultJSON(command, result); encodeError != nil {
			return encodeError
		}
	}

	if runError != nil {
		var recoverableError RecoverableError
		if errors.As(runError, &recoverableError) {
			return ExitError{Code: recoverableError.ExitCode}
		}
		return ExitError{Code: result.ExitCode}
	}
	if result.ExitCode != ExitCodeSuccess {
		return ExitError{Code: result.ExitCode}
	}

	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command, arguments []string, mode RunMode, configuration CommandConfiguration) Options {
	solutionRoot := defaultSolutionRootConstant
	if len(arguments) > 0 && len(strings.TrimSpace(arguments[0])) > 0 {
		solutionRoot = strings.TrimSpace(arguments[0])
	}

	strategyValue, _ := command.Flags().GetString(flagStrategyNameConstant)
	dryRunValue, _ := command.Flags().GetBool(flagDryRunNameConstant)
	noBackupValue, _ := command.Flags().GetBool(flagNoBackupNameConstant)
	keepVersionValue, _ := command.Flags().GetBool(flagKeepVersionNameConstant)
	mergeValue, _ := command.Flags().GetBool(flagMergeNameConstant)
	transitiveValue, _ := command.Flags().GetBool(flagTransitiveNameConstant)
	assumeYesValue, _ := command.Flags().GetBool(flagAssumeYesNameConstant)
	verifyValue, _ := command.Flags().GetBool(flagVerifyNameConstant)

	verifyRestore := configuration.VerifyRestore || verifyValue

	return Options{
		SolutionRoot:         solutionRoot,
		Mode:                 mode,
		Strategy:             resolve.Strategy(strings.TrimSpace(strategyValue)),
		DryRun:               dryRunValue,
		BackupsEnabled:       !noBackupValue,
		BackupDirectoryName:  configuration.BackupDirectory,
		KeepVersionAttribute: keepVersionValue,
		MergeExisting:        mergeValue,
		AnalyzeTransitive:    transitiveValue,
		ManageIgnoreFile:     configuration.IgnoreFileManaged,
		VerifyRestore:        verifyRestore,
		AssumeYes:            assumeYesValue,
	}
}

// offerRollback handles recoverable failures at the presentation boundary:
// with --assume-yes the run's own backup set is restored immediately,
// otherwise the user is asked.
func (builder *CommandBuilder) offerRollback(command *cobra.Command, executor MigrationExecutor, options Options, runError error) error {
	var recoverableError RecoverableError
	if !errors.As(runError, &recoverableError) {
		return runError
	}

	performRollback := options.AssumeYes
	if !performRollback {
		prompter := shared.NewIOConfirmationPrompter(command.InOrStdin(), command.OutOrStdout())
		confirmation, promptError := prompter.Confirm(fmt.Sprintf(rollbackOfferPromptTemplateConstant, recoverableError.BackupDirectory))
		performRollback = promptError == nil && confirmation.Confirmed
	}

	if !performRollback {
		fmt.Fprintln(command.OutOrStdout(), fmt.Sprintf(rollbackOfferSkippedTemplateConstant, recoverableError.BackupDirectory))
		return runError
	}

	rollbackOptions := Options{
		SolutionRoot:        options.SolutionRoot,
		Mode:                RunModeRollback,
		BackupDirectoryName: options.BackupDirectoryName,
		AssumeYes:           true,
	}
	if _, rollbackError := executor.Execute(command.Context(), rollbackOptions); rollbackError != nil {
		return rollbackError
	}

	return runError
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
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

// resolveExecutor wires the production service over the command's streams.
// Human-facing output moves to standard error when JSON output is requested
// so standard output carries only the encoded result.
func (builder *CommandBuilder) resolveExecutor(command *cobra.Command, logger *zap.Logger, options Options, jsonOutput bool) MigrationExecutor {
	if builder.Executor != nil {
		return builder.Executor
	}

	reporterOutput := command.OutOrStdout()
	if jsonOutput {
		reporterOutput = command.ErrOrStderr()
	}

	fileSystem := shared.NewOSFileSystem()
	reporter := shared.NewWriterReporter(reporterOutput, command.ErrOrStderr())
	prompter := resolvePrompter(command, options)

	var decider resolve.ConflictDecider
	if options.Strategy == resolve.StrategyInteractive {
		decider = NewIOConflictDecider(command.InOrStdin(), command.OutOrStdout())
	}

	service, _ := NewService(ServiceDependencies{
		Logger:        logger,
		FileSystem:    fileSystem,
		Reporter:      reporter,
		Prompter:      prompter,
		Discoverer:    project.NewDiscoverer(options.BackupDirectoryName),
		Scanner:       project.NewScanner(logger, fileSystem),
		GraphAnalyzer: graph.NewService(logger, fileSystem),
		Resolver:      resolve.NewResolver(logger),
		BackupManager: backup.NewManager(logger, fileSystem, options.BackupsEnabled),
		Decider:       decider,
		DotnetRunner:  dotnet.NewOSRunner(logger),
	})

	return service
}

// UnitRunner returns an executor function suitable for fan-out across many
// solution roots. Each invocation wires a fresh production service over the
// command's streams unless an executor override is present.
func (builder *CommandBuilder) UnitRunner(command *cobra.Command, jsonOutput bool) func(context.Context, Options) (MigrationResult, error) {
	return func(executionContext context.Context, options Options) (MigrationResult, error) {
		executor := builder.resolveExecutor(command, builder.resolveLogger(), options, jsonOutput)
		return executor.Execute(executionContext, options)
	}
}

func resolvePrompter(command *cobra.Command, options Options) shared.ConfirmationPrompter {
	if options.AssumeYes {
		return shared.AssumeYesPrompter{}
	}
	return shared.NewIOConfirmationPrompter(command.InOrStdin(), command.OutOrStdout())
}

func writeResultJSON(command *cobra.Command, result MigrationResult) error {
	encodedResult, marshalError := json.MarshalIndent(result, "", "  ")
	if marshalError != nil {
		return fmt.Errorf(jsonMarshalFailedTemplateConstant, marshalError)
	}
	fmt.Fprintln(command.OutOrStdout(), string(encodedResult))
	return nil
}
