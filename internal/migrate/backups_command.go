package migrate

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	rollbackUseConstant                = "rollback [path]"
	rollbackShortDescriptionConstant   = "Restore project files from the most recent backup set"
	rollbackLongDescriptionConstant    = "rollback restores every file recorded in the backup manifest, removes a migration-created central manifest, and cleans up the consumed backup set."
	backupsUseConstant                 = "backups"
	backupsShortDescriptionConstant    = "Inspect and manage migration backup sets"
	backupsListUseConstant             = "list [path]"
	backupsListShortDescription        = "List backup sets grouped by timestamp"
	backupsPruneUseConstant            = "prune [path]"
	backupsPruneShortDescription       = "Remove all but the most recent backup sets"
	backupsClearUseConstant            = "clear [path]"
	backupsClearShortDescription       = "Remove every backup set"
	flagKeepNameConstant               = "keep"
	flagKeepDescriptionConstant        = "Number of most recent backup sets to keep"
	defaultKeepCountConstant           = 3
	clearConfirmationPromptConstant    = "Remove every backup set? [y/N]: "
	clearCancelledMessageConstant      = "Clear cancelled; backups preserved"
	invalidKeepCountTemplateConstant   = "--%s must not be negative"
	confirmationFailedTemplateConstant = "confirmation failed: %w"
)

// BuildRollbackCommand constructs the rollback command.
func (builder *CommandBuilder) BuildRollbackCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:          rollbackUseConstant,
		Short:        rollbackShortDescriptionConstant,
		Long:         rollbackLongDescriptionConstant,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, RunModeRollback)
		},
	}

	command.Flags().Bool(flagAssumeYesNameConstant, false, flagAssumeYesDescriptionConstant)
	command.Flags().Bool(flagJSONNameConstant, false, flagJSONDescriptionConstant)

	return command, nil
}

// BuildBackupsCommand constructs the backups command group.
func (builder *CommandBuilder) BuildBackupsCommand() (*cobra.Command, error) {
	parentCommand := &cobra.Command{
		Use:   backupsUseConstant,
		Short: backupsShortDescriptionConstant,
	}

	listCommand := &cobra.Command{
		Use:          backupsListUseConstant,
		Short:        backupsListShortDescription,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, RunModeListBackups)
		},
	}
	listCommand.Flags().Bool(flagJSONNameConstant, false, flagJSONDescriptionConstant)

	pruneCommand := &cobra.Command{
		Use:          backupsPruneUseConstant,
		Short:        backupsPruneShortDescription,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         builder.runPrune,
	}
	pruneCommand.Flags().Int(flagKeepNameConstant, defaultKeepCountConstant, flagKeepDescriptionConstant)

	clearCommand := &cobra.Command{
		Use:          backupsClearUseConstant,
		Short:        backupsClearShortDescription,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         builder.runClear,
	}
	clearCommand.Flags().Bool(flagAssumeYesNameConstant, false, flagAssumeYesDescriptionConstant)

	parentCommand.AddCommand(listCommand, pruneCommand, clearCommand)

	return parentCommand, nil
}

func (builder *CommandBuilder) runPrune(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	options := builder.parseOptions(command, arguments, RunModeListBackups, configuration)

	keepCount, _ := command.Flags().GetInt(flagKeepNameConstant)
	if keepCount < 0 {
		fmt.Fprintln(command.ErrOrStderr(), fmt.Sprintf(invalidKeepCountTemplateConstant, flagKeepNameConstant))
		return ExitError{Code: ExitCodeValidationError}
	}

	executor := builder.resolveExecutor(command, builder.resolveLogger(), options, false)

	exitCode, pruneError := executor.PruneBackupHistory(options.SolutionRoot, options.BackupDirectoryName, keepCount)
	if pruneError != nil || exitCode != ExitCodeSuccess {
		return ExitError{Code: exitCode}
	}

	return nil
}

func (builder *CommandBuilder) runClear(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	options := builder.parseOptions(command, arguments, RunModeListBackups, configuration)

	if !options.AssumeYes {
		prompter := resolvePrompter(command, options)
		confirmation, promptError := prompter.Confirm(clearConfirmationPromptConstant)
		if promptError != nil {
			return fmt.Errorf(confirmationFailedTemplateConstant, promptError)
		}
		if !confirmation.Confirmed {
			fmt.Fprintln(command.OutOrStdout(), clearCancelledMessageConstant)
			return nil
		}
	}

	executor := builder.resolveExecutor(command, builder.resolveLogger(), options, false)

	exitCode, clearError := executor.ClearBackupHistory(options.SolutionRoot, options.BackupDirectoryName)
	if clearError != nil || exitCode != ExitCodeSuccess {
		return ExitError{Code: exitCode}
	}

	return nil
}
