package migrate

import (
	"fmt"

	"github.com/centralpkg/cpmig/internal/project"
	"github.com/centralpkg/cpmig/internal/resolve"
)

// ExitCode classifies the outcome of one migration run. It is the single
// authoritative run summary and maps directly to the process exit code.
type ExitCode int

// Run outcome classifications.
const (
	ExitCodeSuccess             ExitCode = 0
	ExitCodeValidationError     ExitCode = 1
	ExitCodeFileOperationError  ExitCode = 2
	ExitCodeVersionConflict     ExitCode = 3
	ExitCodeNoProjectsFound     ExitCode = 4
	ExitCodeAnalysisIssuesFound ExitCode = 5
	ExitCodeUnexpectedError     ExitCode = 10
)

// RunMode selects which workflow a run executes.
type RunMode string

// Supported run modes.
const (
	RunModeMigrate     RunMode = "migrate"
	RunModeAnalyze     RunMode = "analyze"
	RunModeRollback    RunMode = "rollback"
	RunModeListBackups RunMode = "list-backups"
)

// Options configures one migration run.
type Options struct {
	SolutionRoot         string
	Mode                 RunMode
	Strategy             resolve.Strategy
	DryRun               bool
	BackupsEnabled       bool
	BackupDirectoryName  string
	KeepVersionAttribute bool
	MergeExisting        bool
	AnalyzeTransitive    bool
	ManageIgnoreFile     bool
	VerifyRestore        bool
	AssumeYes            bool
}

// MigrationResult captures the observable outcomes of one run.
type MigrationResult struct {
	ExitCode            ExitCode `json:"exitCode"`
	RunID               string   `json:"runId"`
	ProjectsProcessed   int      `json:"projectsProcessed"`
	PackagesFound       int      `json:"packagesFound"`
	ConflictsResolved   int      `json:"conflictsResolved"`
	RedundantReferences []string `json:"redundantReferences,omitempty"`
	PropsFilePath       string   `json:"propsFilePath,omitempty"`
	BackupPath          string   `json:"backupPath,omitempty"`
	WasDryRun           bool     `json:"wasDryRun"`
}

// ExitError carries a classified exit code across the command boundary so the
// process can terminate with it.
type ExitError struct {
	Code ExitCode
}

// Error describes the exit classification.
func (exitError ExitError) Error() string {
	return fmt.Sprintf("exit code %d", int(exitError.Code))
}

// InvalidInputError describes option validation failures caught before any I/O.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s", inputError.FieldName, inputError.Message)
}

// RecoverableError wraps a mutating-phase failure for which this run's own
// backup set offers rollback. The caller decides whether to prompt the user
// or roll back automatically; the core never blocks inside error handling.
type RecoverableError struct {
	Cause           error
	BackupDirectory string
	ExitCode        ExitCode
}

// Error describes the underlying failure and the recovery material location.
func (recoverableError RecoverableError) Error() string {
	return fmt.Sprintf("%v (rollback available from backup at %s)", recoverableError.Cause, recoverableError.BackupDirectory)
}

// Unwrap exposes the underlying failure.
func (recoverableError RecoverableError) Unwrap() error {
	return recoverableError.Cause
}

// ProjectScanner reads and rewrites project files.
type ProjectScanner interface {
	ScanProject(projectPath string) ([]project.PackageReference, bool)
	TransformProject(projectPath string, pinnedPackageNames []string, keepVersionAttribute bool) (string, bool, error)
}

// ProjectDiscoverer locates project files beneath a solution root.
type ProjectDiscoverer interface {
	DiscoverFromSolutionRoot(rootPath string) (string, []string, error)
}

// GraphAnalyzer flags direct references already satisfied transitively.
type GraphAnalyzer interface {
	IdentifyRedundantDirectReferences(projectPath string, directDependencyNames []string) []string
}
