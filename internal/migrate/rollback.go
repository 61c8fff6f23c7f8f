package migrate

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/centralpkg/cpmig/internal/props"
	"github.com/centralpkg/cpmig/internal/resolve"
)

const (
	manifestMissingTemplateConstant      = "No backup manifest found under %s; nothing to roll back"
	rollbackPromptTemplateConstant       = "Restore %d files from backup set %s? [y/N]: "
	rollbackCancelledMessageConstant     = "Rollback cancelled; no files were touched"
	rollbackPromptFailedTemplateConstant = "rollback confirmation failed: %w"
	rollbackFailedTemplateConstant       = "rollback incomplete: %d of %d files restored"
	rollbackRestoredTemplateConstant     = "Restored %d files from backup set %s"
	rollbackPropsDeletedTemplateConstant = "Removed migration-created %s"
	rollbackPropsPreservedTemplate       = "Preserved pre-existing %s"
	rollbackCleanupWarningTemplate       = "backup cleanup left residue: %s"
	backupHistoryFailedTemplateConstant  = "unable to read backup history: %w"
	noBackupSetsTemplateConstant         = "No backup sets found under %s"
	historyHeaderTimestampConstant       = "Timestamp"
	historyHeaderFileCountConstant       = "Files"
	pruneSummaryTemplateConstant         = "Pruned %d backup sets (%d files, %d bytes); kept %d"
	pruneFailedTemplateConstant          = "backup pruning failed: %w"
	pruneResidueWarningTemplateConstant  = "pruning left residue: %s"
	clearSummaryTemplateConstant         = "Removed %d backup sets (%d files, %d bytes)"
	analyzeConflictsTemplateConstant     = "%d packages requested with conflicting versions"
	analyzeCleanMessageConstant          = "No conflicts or redundant references found"
	analyzeSummaryTemplateConstant       = "Analyzed %d projects, %d packages"
)

func (service *Service) runRollback(options Options, result *MigrationResult) error {
	backupDirectory := filepath.Join(options.SolutionRoot, options.BackupDirectoryName)
	result.BackupPath = backupDirectory

	manifest, manifestFound := service.backupManager.ReadManifest(backupDirectory)
	if !manifestFound {
		result.ExitCode = ExitCodeFileOperationError
		missingError := fmt.Errorf(manifestMissingTemplateConstant, backupDirectory)
		service.reporter.Error(missingError.Error())
		return missingError
	}

	if !options.AssumeYes && service.prompter != nil {
		prompt := fmt.Sprintf(rollbackPromptTemplateConstant, len(manifest.Backups), manifest.Timestamp)
		confirmation, promptError := service.prompter.Confirm(prompt)
		if promptError != nil {
			result.ExitCode = ExitCodeUnexpectedError
			return fmt.Errorf(rollbackPromptFailedTemplateConstant, promptError)
		}
		if !confirmation.Confirmed {
			service.reporter.Info(rollbackCancelledMessageConstant)
			result.ExitCode = ExitCodeSuccess
			return nil
		}
	}

	outcome := service.backupManager.Rollback(backupDirectory)
	result.ProjectsProcessed = outcome.RestoredCount

	if outcome.FailedCount > 0 {
		for _, failure := range outcome.Failures {
			service.reporter.Error(failure)
		}
		result.ExitCode = ExitCodeFileOperationError
		rollbackError := fmt.Errorf(rollbackFailedTemplateConstant, outcome.RestoredCount, outcome.RestoredCount+outcome.FailedCount)
		service.reporter.Error(rollbackError.Error())
		return rollbackError
	}

	service.reporter.Info(fmt.Sprintf(rollbackRestoredTemplateConstant, outcome.RestoredCount, manifest.Timestamp))
	if outcome.PropsFileDeleted {
		service.reporter.Info(fmt.Sprintf(rollbackPropsDeletedTemplateConstant, props.ManifestFileName))
	} else if manifest.PropsFileExisted {
		service.reporter.Info(fmt.Sprintf(rollbackPropsPreservedTemplate, props.ManifestFileName))
	}
	if len(outcome.CleanupErrors) > 0 {
		service.reporter.Warn(fmt.Sprintf(rollbackCleanupWarningTemplate, strings.Join(outcome.CleanupErrors, versionsJoinSeparatorConstant)))
	}

	result.ExitCode = ExitCodeSuccess
	return nil
}

func (service *Service) runListBackups(options Options, result *MigrationResult) error {
	backupDirectory := filepath.Join(options.SolutionRoot, options.BackupDirectoryName)
	result.BackupPath = backupDirectory

	backupSets, historyError := service.backupManager.GetBackupHistory(backupDirectory)
	if historyError != nil {
		result.ExitCode = ExitCodeFileOperationError
		wrappedError := fmt.Errorf(backupHistoryFailedTemplateConstant, historyError)
		service.reporter.Error(wrappedError.Error())
		return wrappedError
	}

	if len(backupSets) == 0 {
		service.reporter.Info(fmt.Sprintf(noBackupSetsTemplateConstant, backupDirectory))
		result.ExitCode = ExitCodeSuccess
		return nil
	}

	rows := make([][]string, 0, len(backupSets))
	for _, backupSet := range backupSets {
		rows = append(rows, []string{backupSet.Timestamp, strconv.Itoa(len(backupSet.Files))})
	}
	service.reporter.Table([]string{historyHeaderTimestampConstant, historyHeaderFileCountConstant}, rows)

	result.ExitCode = ExitCodeSuccess
	return nil
}

// PruneBackupHistory removes all but the most recent keepCount backup sets.
func (service *Service) PruneBackupHistory(solutionRoot string, backupDirectoryName string, keepCount int) (ExitCode, error) {
	backupDirectory := filepath.Join(solutionRoot, backupDirectoryName)

	pruneResult, pruneError := service.backupManager.PruneBackups(backupDirectory, keepCount)
	if pruneError != nil {
		wrappedError := fmt.Errorf(pruneFailedTemplateConstant, pruneError)
		service.reporter.Error(wrappedError.Error())
		return ExitCodeFileOperationError, wrappedError
	}
	if len(pruneResult.Errors) > 0 {
		service.reporter.Warn(fmt.Sprintf(pruneResidueWarningTemplateConstant, strings.Join(pruneResult.Errors, versionsJoinSeparatorConstant)))
	}

	service.reporter.Info(fmt.Sprintf(pruneSummaryTemplateConstant, pruneResult.BackupsRemoved, pruneResult.FilesRemoved, pruneResult.BytesFreed, pruneResult.KeptCount))
	return ExitCodeSuccess, nil
}

// ClearBackupHistory removes every backup set under the backup directory.
func (service *Service) ClearBackupHistory(solutionRoot string, backupDirectoryName string) (ExitCode, error) {
	backupDirectory := filepath.Join(solutionRoot, backupDirectoryName)

	pruneResult, pruneError := service.backupManager.PruneAllBackups(backupDirectory)
	if pruneError != nil {
		wrappedError := fmt.Errorf(pruneFailedTemplateConstant, pruneError)
		service.reporter.Error(wrappedError.Error())
		return ExitCodeFileOperationError, wrappedError
	}
	if len(pruneResult.Errors) > 0 {
		service.reporter.Warn(fmt.Sprintf(pruneResidueWarningTemplateConstant, strings.Join(pruneResult.Errors, versionsJoinSeparatorConstant)))
	}

	service.reporter.Info(fmt.Sprintf(clearSummaryTemplateConstant, pruneResult.BackupsRemoved, pruneResult.FilesRemoved, pruneResult.BytesFreed))
	return ExitCodeSuccess, nil
}

func (service *Service) runAnalyze(options Options, result *MigrationResult) error {
	_, projectPaths, discoveryError := service.discoverer.DiscoverFromSolutionRoot(options.SolutionRoot)
	if discoveryError != nil {
		result.ExitCode = ExitCodeFileOperationError
		wrappedError := fmt.Errorf(discoveryFailedTemplateConstant, discoveryError)
		service.reporter.Error(wrappedError.Error())
		return wrappedError
	}
	if len(projectPaths) == 0 {
		result.ExitCode = ExitCodeNoProjectsFound
		service.reporter.Warn(fmt.Sprintf(noProjectsFoundTemplateConstant, options.SolutionRoot))
		return nil
	}

	versionMap := resolve.NewVersionMap()
	service.scanProjects(options, result, versionMap, projectPaths)
	result.PackagesFound = versionMap.Len()

	conflictedNames := service.resolver.DetectConflicts(versionMap)
	if len(conflictedNames) > 0 {
		service.reportConflictTable(conflictedNames, versionMap)
		service.reporter.Warn(fmt.Sprintf(analyzeConflictsTemplateConstant, len(conflictedNames)))
	}

	casingMismatches := service.resolver.DetectCasingMismatches(versionMap)
	for _, casingMismatch := range casingMismatches {
		service.reporter.Warn(fmt.Sprintf(casingMismatchWarningTemplate, strings.Join(casingMismatch.Casings, versionsJoinSeparatorConstant)))
	}

	service.reporter.Info(fmt.Sprintf(analyzeSummaryTemplateConstant, result.ProjectsProcessed, result.PackagesFound))

	if len(conflictedNames) > 0 || len(casingMismatches) > 0 || len(result.RedundantReferences) > 0 {
		result.ExitCode = ExitCodeAnalysisIssuesFound
		return nil
	}

	service.reporter.Info(analyzeCleanMessageConstant)
	result.ExitCode = ExitCodeSuccess
	return nil
}
