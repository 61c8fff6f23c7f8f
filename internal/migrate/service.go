package migrate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/centralpkg/cpmig/internal/backup"
	"github.com/centralpkg/cpmig/internal/dotnet"
	"github.com/centralpkg/cpmig/internal/props"
	"github.com/centralpkg/cpmig/internal/resolve"
	"github.com/centralpkg/cpmig/internal/shared"
)

const (
	solutionRootFieldNameConstant       = "solution_root"
	strategyFieldNameConstant           = "strategy"
	backupDirectoryFieldNameConstant    = "backup_directory"
	deciderFieldNameConstant            = "conflict_decider"
	requiredValueMessageConstant        = "value must be provided"
	unknownStrategyTemplateConstant     = "unknown strategy %q"
	interactiveDeciderMessageConstant   = "interactive strategy requires a conflict decider"
	fileSystemMissingMessageConstant    = "filesystem not configured"
	discovererMissingMessageConstant    = "project discoverer not configured"
	scannerMissingMessageConstant       = "project scanner not configured"
	resolverMissingMessageConstant      = "version resolver not configured"
	backupManagerMissingMessageConstant = "backup manager not configured"
	reporterMissingMessageConstant      = "reporter not configured"
	discoveryFailedTemplateConstant     = "project discovery failed: %w"
	noProjectsFoundTemplateConstant     = "No project files found beneath %s"
	propsExistsWithoutMergeTemplate     = "central manifest %s already exists; re-run with --merge to union its entries"
	propsReadFailedTemplateConstant     = "unable to read central manifest %s: %w"
	projectBackupFailedTemplateConstant = "backup of %s failed: %w"
	projectWriteFailedTemplateConstant  = "rewrite of %s failed: %w"
	propsWriteFailedTemplateConstant    = "unable to write central manifest %s: %w"
	manifestWriteFailedTemplateConstant = "unable to write backup manifest: %w"
	conflictsDetectedTemplateConstant   = "%d version conflicts detected with strategy fail"
	runStartedMessageConstant           = "Migration run started"
	runFinishedMessageConstant          = "Migration run finished"
	runIdentifierFieldConstant          = "run_id"
	projectCountFieldConstant           = "project_count"
	exitCodeFieldConstant               = "exit_code"
	dryRunWritePreviewTemplateConstant  = "[dry-run] would write %s with %d pinned packages"
	dryRunRewritePreviewTemplate        = "[dry-run] would rewrite %s"
	conflictTableHeaderPackageConstant  = "Package"
	conflictTableHeaderVersionsConstant = "Requested Versions"
	casingMismatchWarningTemplate       = "Package referenced with inconsistent casing: %s"
	conditionalEntriesWarningConstant   = "Existing central manifest has conditional entries; they are preserved verbatim"
	redundantReferenceTemplateConstant  = "%s: %s"
	redundantReportTemplateConstant     = "Redundant direct reference in %s: %s (already transitive)"
	summaryTemplateConstant             = "Processed %d projects, %d packages, %d conflicts resolved"
	mergeSummaryTemplateConstant        = "Merged central manifest: %d added, %d updated"
	propsWrittenTemplateConstant        = "Central manifest written to %s"
	verifyFailedWarningTemplateConstant = "dotnet restore verification failed: %v"
	verifyExitWarningTemplateConstant   = "dotnet restore exited with code %d"
	versionsJoinSeparatorConstant       = ", "
	ignoreFileNameConstant              = ".gitignore"
	ignoreEntryWriteWarningTemplate     = "unable to update %s: %v"
	ignoreFilePermissionsConstant       = 0o644
	propsFilePermissionsConstant        = 0o644
	projectFilePermissionsConstant      = 0o644
)

var (
	errFileSystemMissing    = errors.New(fileSystemMissingMessageConstant)
	errDiscovererMissing    = errors.New(discovererMissingMessageConstant)
	errScannerMissing       = errors.New(scannerMissingMessageConstant)
	errResolverMissing      = errors.New(resolverMissingMessageConstant)
	errBackupManagerMissing = errors.New(backupManagerMissingMessageConstant)
	errReporterMissing      = errors.New(reporterMissingMessageConstant)
)

// ServiceDependencies describes required collaborators for migration runs.
type ServiceDependencies struct {
	Logger        *zap.Logger
	Clock         shared.Clock
	FileSystem    shared.FileSystem
	Reporter      shared.Reporter
	Prompter      shared.ConfirmationPrompter
	Discoverer    ProjectDiscoverer
	Scanner       ProjectScanner
	GraphAnalyzer GraphAnalyzer
	Resolver      *resolve.Resolver
	BackupManager *backup.Manager
	Decider       resolve.ConflictDecider
	DotnetRunner  dotnet.Runner
}

// Service orchestrates migration, analysis, rollback, and retention runs.
type Service struct {
	logger        *zap.Logger
	clock         shared.Clock
	fileSystem    shared.FileSystem
	reporter      shared.Reporter
	prompter      shared.ConfirmationPrompter
	discoverer    ProjectDiscoverer
	scanner       ProjectScanner
	graphAnalyzer GraphAnalyzer
	resolver      *resolve.Resolver
	backupManager *backup.Manager
	decider       resolve.ConflictDecider
	dotnetRunner  dotnet.Runner
}

// NewService constructs a Service with the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.FileSystem == nil {
		return nil, errFileSystemMissing
	}
	if dependencies.Discoverer == nil {
		return nil, errDiscovererMissing
	}
	if dependencies.Scanner == nil {
		return nil, errScannerMissing
	}
	if dependencies.Resolver == nil {
		return nil, errResolverMissing
	}
	if dependencies.BackupManager == nil {
		return nil, errBackupManagerMissing
	}
	if dependencies.Reporter == nil {
		return nil, errReporterMissing
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = shared.SystemClock{}
	}

	service := &Service{
		logger:        logger,
		clock:         clock,
		fileSystem:    dependencies.FileSystem,
		reporter:      dependencies.Reporter,
		prompter:      dependencies.Prompter,
		discoverer:    dependencies.Discoverer,
		scanner:       dependencies.Scanner,
		graphAnalyzer: dependencies.GraphAnalyzer,
		resolver:      dependencies.Resolver,
		backupManager: dependencies.BackupManager,
		decider:       dependencies.Decider,
		dotnetRunner:  dependencies.DotnetRunner,
	}

	return service, nil
}

// Execute performs the run selected by the options.
func (service *Service) Execute(executionContext context.Context, options Options) (MigrationResult, error) {
	result := MigrationResult{RunID: uuid.NewString(), WasDryRun: options.DryRun}

	if validationError := service.validateOptions(options); validationError != nil {
		result.ExitCode = ExitCodeValidationError
		service.reporter.Error(validationError.Error())
		return result, validationError
	}

	service.logger.Info(runStartedMessageConstant,
		zap.String(runIdentifierFieldConstant, result.RunID),
		zap.String(solutionRootFieldNameConstant, options.SolutionRoot),
	)

	var runError error
	switch options.Mode {
	case RunModeRollback:
		runError = service.runRollback(options, &result)
	case RunModeListBackups:
		runError = service.runListBackups(options, &result)
	case RunModeAnalyze:
		runError = service.runAnalyze(options, &result)
	default:
		runError = service.runMigrate(executionContext, options, &result)
	}

	service.logger.Info(runFinishedMessageConstant,
		zap.String(runIdentifierFieldConstant, result.RunID),
		zap.Int(exitCodeFieldConstant, int(result.ExitCode)),
	)

	return result, runError
}

func (service *Service) validateOptions(options Options) error {
	if len(strings.TrimSpace(options.SolutionRoot)) == 0 {
		return InvalidInputError{FieldName: solutionRootFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if options.BackupsEnabled && len(strings.TrimSpace(options.BackupDirectoryName)) == 0 {
		return InvalidInputError{FieldName: backupDirectoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if options.Mode != RunModeMigrate && options.Mode != RunModeAnalyze {
		return nil
	}

	strategyKnown := false
	for _, knownStrategy := range resolve.KnownStrategies() {
		if string(options.Strategy) == knownStrategy {
			strategyKnown = true
			break
		}
	}
	if !strategyKnown {
		return InvalidInputError{FieldName: strategyFieldNameConstant, Message: fmt.Sprintf(unknownStrategyTemplateConstant, options.Strategy)}
	}
	if options.Strategy == resolve.StrategyInteractive && service.decider == nil {
		return InvalidInputError{FieldName: deciderFieldNameConstant, Message: interactiveDeciderMessageConstant}
	}
	return nil
}

// runState tracks the mutating progress of one migration so failure handlers
// know whether this run's backups already hold recovery material.
type runState struct {
	backupDirectory  string
	sharedTimestamp  string
	backupEntries    []backup.BackupEntry
	propsFilePath    string
	propsFileExisted bool
}

func (service *Service) runMigrate(executionContext context.Context, options Options, result *MigrationResult) error {
	basePath, projectPaths, discoveryError := service.discoverer.DiscoverFromSolutionRoot(options.SolutionRoot)
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

	state := runState{
		propsFilePath:   filepath.Join(basePath, props.ManifestFileName),
		sharedTimestamp: backup.FormatTimestamp(service.clock.Now()),
		backupDirectory: filepath.Join(basePath, options.BackupDirectoryName),
	}
	result.PropsFilePath = state.propsFilePath

	_, statError := service.fileSystem.Stat(state.propsFilePath)
	state.propsFileExisted = statError == nil

	var existingPropsData []byte
	if state.propsFileExisted {
		if !options.MergeExisting {
			result.ExitCode = ExitCodeFileOperationError
			mergeRequiredError := fmt.Errorf(propsExistsWithoutMergeTemplate, state.propsFilePath)
			service.reporter.Error(mergeRequiredError.Error())
			return mergeRequiredError
		}
		var propsReadError error
		existingPropsData, propsReadError = service.fileSystem.ReadFile(state.propsFilePath)
		if propsReadError != nil {
			result.ExitCode = ExitCodeFileOperationError
			wrappedError := fmt.Errorf(propsReadFailedTemplateConstant, state.propsFilePath, propsReadError)
			service.reporter.Error(wrappedError.Error())
			return wrappedError
		}
	}

	versionMap := resolve.NewVersionMap()

	if state.propsFileExisted && options.MergeExisting {
		existingVersions, hadConditionalEntries, existingParseError := props.ReadExistingVersions(state.propsFilePath, existingPropsData)
		if existingParseError != nil {
			result.ExitCode = ExitCodeFileOperationError
			service.reporter.Error(existingParseError.Error())
			return existingParseError
		}
		if hadConditionalEntries {
			service.reporter.Warn(conditionalEntriesWarningConstant)
		}
		for packageName, version := range existingVersions {
			versionMap.Add(packageName, version)
		}
	}

	projectPlans := service.scanProjects(options, result, versionMap, projectPaths)
	result.PackagesFound = versionMap.Len()

	for _, casingMismatch := range service.resolver.DetectCasingMismatches(versionMap) {
		service.reporter.Warn(fmt.Sprintf(casingMismatchWarningTemplate, strings.Join(casingMismatch.Casings, versionsJoinSeparatorConstant)))
	}

	// Conflicts are resolved before any file is touched so a fail-strategy
	// abort leaves the tree exactly as it was found.
	resolvedVersions, resolveError := service.resolveConflicts(options, result, &state, versionMap)
	if resolveError != nil {
		return resolveError
	}

	backupsActive := options.BackupsEnabled && !options.DryRun
	if backupsActive {
		if _, directoryError := service.backupManager.CreateBackupDirectory(state.backupDirectory); directoryError != nil {
			result.ExitCode = ExitCodeFileOperationError
			service.reporter.Error(directoryError.Error())
			return directoryError
		}
		result.BackupPath = state.backupDirectory

		if state.propsFileExisted && options.MergeExisting {
			propsEntry, propsBackupError := service.backupManager.CreateBackupForProject(state.propsFilePath, state.backupDirectory, state.sharedTimestamp)
			if propsBackupError != nil {
				return service.failMutating(result, &state, ExitCodeFileOperationError, fmt.Errorf(projectBackupFailedTemplateConstant, state.propsFilePath, propsBackupError))
			}
			state.backupEntries = append(state.backupEntries, propsEntry)
		}
	}

	for _, plan := range projectPlans {
		if rewriteError := service.rewriteProject(options, &state, plan.projectPath, plan.pinnedPackageNames); rewriteError != nil {
			return service.failMutating(result, &state, ExitCodeFileOperationError, rewriteError)
		}
	}

	if writeError := service.writeCentralManifest(options, result, &state, existingPropsData, resolvedVersions); writeError != nil {
		return writeError
	}

	if options.ManageIgnoreFile && !options.DryRun && options.BackupsEnabled {
		service.ensureIgnoreEntry(basePath, options.BackupDirectoryName)
	}

	if options.VerifyRestore && !options.DryRun && service.dotnetRunner != nil {
		service.verifyRestore(executionContext, basePath)
	}

	service.reporter.Info(fmt.Sprintf(summaryTemplateConstant, result.ProjectsProcessed, result.PackagesFound, result.ConflictsResolved))
	result.ExitCode = ExitCodeSuccess
	return nil
}

// projectPlan records what the mutating phase will do to one project file.
type projectPlan struct {
	projectPath        string
	pinnedPackageNames []string
}

// scanProjects performs the read-only phase: it aggregates versions, runs
// redundancy analysis, and plans the rewrites without touching any file.
func (service *Service) scanProjects(options Options, result *MigrationResult, versionMap *resolve.VersionMap, projectPaths []string) []projectPlan {
	var projectPlans []projectPlan
	for _, projectPath := range projectPaths {
		references, parsed := service.scanner.ScanProject(projectPath)
		if !parsed {
			continue
		}

		var pinnedPackageNames []string
		for _, reference := range references {
			if len(reference.Version) == 0 {
				continue
			}
			versionMap.Add(reference.PackageName, reference.Version)
			pinnedPackageNames = append(pinnedPackageNames, reference.PackageName)
		}

		if len(pinnedPackageNames) > 0 {
			projectPlans = append(projectPlans, projectPlan{projectPath: projectPath, pinnedPackageNames: pinnedPackageNames})
		}

		if options.AnalyzeTransitive && service.graphAnalyzer != nil {
			projectName := strings.TrimSuffix(filepath.Base(projectPath), filepath.Ext(projectPath))
			for _, redundantName := range service.graphAnalyzer.IdentifyRedundantDirectReferences(projectPath, pinnedPackageNames) {
				result.RedundantReferences = append(result.RedundantReferences, fmt.Sprintf(redundantReferenceTemplateConstant, projectName, redundantName))
				service.reporter.Warn(fmt.Sprintf(redundantReportTemplateConstant, projectName, redundantName))
			}
		}

		result.ProjectsProcessed++
	}
	return projectPlans
}

func (service *Service) rewriteProject(options Options, state *runState, projectPath string, pinnedPackageNames []string) error {
	transformedText, changed, transformError := service.scanner.TransformProject(projectPath, pinnedPackageNames, options.KeepVersionAttribute)
	if transformError != nil {
		return fmt.Errorf(projectWriteFailedTemplateConstant, projectPath, transformError)
	}
	if !changed {
		return nil
	}

	if options.DryRun {
		service.reporter.Info(fmt.Sprintf(dryRunRewritePreviewTemplate, projectPath))
		return nil
	}

	if options.BackupsEnabled {
		entry, backupError := service.backupManager.CreateBackupForProject(projectPath, state.backupDirectory, state.sharedTimestamp)
		if backupError != nil {
			return fmt.Errorf(projectBackupFailedTemplateConstant, projectPath, backupError)
		}
		state.backupEntries = append(state.backupEntries, entry)
	}

	if writeError := service.fileSystem.WriteFile(projectPath, []byte(transformedText), projectFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(projectWriteFailedTemplateConstant, projectPath, writeError)
	}
	return nil
}

func (service *Service) resolveConflicts(options Options, result *MigrationResult, state *runState, versionMap *resolve.VersionMap) (map[string]string, error) {
	conflictedNames := service.resolver.DetectConflicts(versionMap)

	if len(conflictedNames) > 0 && options.Strategy == resolve.StrategyFail {
		service.reportConflictTable(conflictedNames, versionMap)
		conflictError := fmt.Errorf(conflictsDetectedTemplateConstant, len(conflictedNames))
		return nil, service.failMutating(result, state, ExitCodeVersionConflict, conflictError)
	}

	resolvedVersions := make(map[string]string, versionMap.Len())
	for _, packageName := range versionMap.Names() {
		versions := versionMap.Versions(packageName)
		if len(versions) == 1 {
			resolvedVersions[packageName] = versions[0]
			continue
		}

		if options.Strategy == resolve.StrategyInteractive {
			action, decisionError := service.decider.Decide(packageName, versions)
			if decisionError != nil {
				return nil, service.failMutating(result, state, ExitCodeUnexpectedError, decisionError)
			}
			resolvedVersion, applyError := service.resolver.ApplyAction(packageName, versions, action)
			if applyError != nil {
				exitCode := ExitCodeUnexpectedError
				if errors.Is(applyError, resolve.ErrResolutionAborted) {
					exitCode = ExitCodeVersionConflict
				}
				return nil, service.failMutating(result, state, exitCode, applyError)
			}
			resolvedVersions[packageName] = resolvedVersion
			result.ConflictsResolved++
			continue
		}

		resolvedVersions[packageName] = service.resolver.ResolveVersion(versions, options.Strategy)
		result.ConflictsResolved++
	}

	return resolvedVersions, nil
}

func (service *Service) writeCentralManifest(options Options, result *MigrationResult, state *runState, existingPropsData []byte, resolvedVersions map[string]string) error {
	var manifestText string
	if state.propsFileExisted && options.MergeExisting {
		mergeResult, mergeError := props.MergeIntoExisting(state.propsFilePath, existingPropsData, resolvedVersions)
		if mergeError != nil {
			return service.failMutating(result, state, ExitCodeFileOperationError, mergeError)
		}
		manifestText = mergeResult.MergedText
		service.reporter.Info(fmt.Sprintf(mergeSummaryTemplateConstant, mergeResult.AddedCount, mergeResult.UpdatedCount))
	} else {
		manifestText = props.RenderManifest(resolvedVersions)
	}

	if options.DryRun {
		service.reporter.Info(fmt.Sprintf(dryRunWritePreviewTemplateConstant, state.propsFilePath, len(resolvedVersions)))
		return nil
	}

	if propsWriteError := service.fileSystem.WriteFile(state.propsFilePath, []byte(manifestText), propsFilePermissionsConstant); propsWriteError != nil {
		return service.failMutating(result, state, ExitCodeFileOperationError, fmt.Errorf(propsWriteFailedTemplateConstant, state.propsFilePath, propsWriteError))
	}
	service.reporter.Info(fmt.Sprintf(propsWrittenTemplateConstant, state.propsFilePath))

	if options.BackupsEnabled {
		backupManifest := backup.BackupManifest{
			Timestamp:        state.sharedTimestamp,
			PropsFilePath:    state.propsFilePath,
			PropsFileExisted: state.propsFileExisted,
			Backups:          state.backupEntries,
		}
		if manifestWriteError := service.backupManager.WriteManifest(state.backupDirectory, backupManifest); manifestWriteError != nil {
			return service.failMutating(result, state, ExitCodeFileOperationError, fmt.Errorf(manifestWriteFailedTemplateConstant, manifestWriteError))
		}
	}

	return nil
}

// failMutating classifies an abort. When this run already mutated files under
// backup protection, the backup manifest is persisted and the failure is
// wrapped as recoverable so the caller can offer rollback; the core never
// prompts from inside error handling.
func (service *Service) failMutating(result *MigrationResult, state *runState, exitCode ExitCode, cause error) error {
	result.ExitCode = exitCode
	service.reporter.Error(cause.Error())

	// A backup entry is written immediately before its file is rewritten, so
	// any recorded entry means the tree may already be mutated: a failed
	// write can truncate the original even when it reports an error.
	if len(state.backupEntries) == 0 {
		return cause
	}

	backupManifest := backup.BackupManifest{
		Timestamp:        state.sharedTimestamp,
		PropsFilePath:    state.propsFilePath,
		PropsFileExisted: state.propsFileExisted,
		Backups:          state.backupEntries,
	}
	if manifestWriteError := service.backupManager.WriteManifest(state.backupDirectory, backupManifest); manifestWriteError != nil {
		service.reporter.Warn(manifestWriteError.Error())
		return cause
	}

	return RecoverableError{Cause: cause, BackupDirectory: state.backupDirectory, ExitCode: exitCode}
}

func (service *Service) reportConflictTable(conflictedNames []string, versionMap *resolve.VersionMap) {
	rows := make([][]string, 0, len(conflictedNames))
	for _, packageName := range conflictedNames {
		rows = append(rows, []string{packageName, strings.Join(versionMap.Versions(packageName), versionsJoinSeparatorConstant)})
	}
	service.reporter.Table([]string{conflictTableHeaderPackageConstant, conflictTableHeaderVersionsConstant}, rows)
}

func (service *Service) ensureIgnoreEntry(basePath string, backupDirectoryName string) {
	ignoreFilePath := filepath.Join(basePath, ignoreFileNameConstant)
	ignoreEntry := backupDirectoryName + "/"

	existingData, readError := service.fileSystem.ReadFile(ignoreFilePath)
	if readError == nil {
		for _, line := range strings.Split(string(existingData), "\n") {
			trimmedLine := strings.TrimSpace(line)
			if trimmedLine == ignoreEntry || trimmedLine == backupDirectoryName {
				return
			}
		}
	}

	updatedData := string(existingData)
	if len(updatedData) > 0 && !strings.HasSuffix(updatedData, "\n") {
		updatedData += "\n"
	}
	updatedData += ignoreEntry + "\n"

	if writeError := service.fileSystem.WriteFile(ignoreFilePath, []byte(updatedData), ignoreFilePermissionsConstant); writeError != nil {
		service.reporter.Warn(fmt.Sprintf(ignoreEntryWriteWarningTemplate, ignoreFilePath, writeError))
	}
}

func (service *Service) verifyRestore(executionContext context.Context, basePath string) {
	executionResult, verifyError := dotnet.Restore(executionContext, service.dotnetRunner, basePath)
	if verifyError != nil {
		service.reporter.Warn(fmt.Sprintf(verifyFailedWarningTemplateConstant, verifyError))
		return
	}
	if executionResult.ExitCode != 0 {
		service.reporter.Warn(fmt.Sprintf(verifyExitWarningTemplateConstant, executionResult.ExitCode))
	}
}
