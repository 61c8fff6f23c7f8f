package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/centralpkg/cpmig/internal/migrate"
	"github.com/centralpkg/cpmig/internal/shared"
)

const (
	reporterMissingMessageConstant   = "reporter not configured"
	discovererMissingMessageConstant = "unit discoverer not configured"
	unitRunnerMissingMessageConstant = "unit runner not configured"
	parentRootFieldNameConstant      = "parent_root"
	requiredParentMessageConstant    = "value must be provided"
	discoveryFailedTemplateConstant  = "unit discovery failed: %w"
	noUnitsFoundTemplateConstant     = "No migration units found beneath %s"
	unitStartedTemplateConstant      = "Migrating %s"
	unitFailedTemplateConstant       = "Unit %s failed: %v"
	unitStoppedMessageConstant       = "Stopping after first failure; pass --continue-on-failure to process remaining units"
	batchSummaryTemplateConstant     = "Batch finished: %d succeeded, %d failed of %d units"
	unitLogFieldConstant             = "unit_root"
	unitCountLogFieldConstant        = "unit_count"
	batchStartedLogMessageConstant   = "Batch run started"
	unitStartedLogMessageConstant    = "Unit migration started"
)

var (
	errReporterMissing   = errors.New(reporterMissingMessageConstant)
	errDiscovererMissing = errors.New(discovererMissingMessageConstant)
	errUnitRunnerMissing = errors.New(unitRunnerMissingMessageConstant)
)

// UnitDiscoverer locates migration unit roots beneath a parent directory.
type UnitDiscoverer interface {
	DiscoverUnits(parentDirectory string, excludedDirectoryNames []string) ([]string, error)
}

// UnitRunner executes one migration unit.
type UnitRunner func(executionContext context.Context, options migrate.Options) (migrate.MigrationResult, error)

// Options configures a batch run. UnitOptions is the per-unit template; its
// SolutionRoot is replaced with each discovered unit root.
type Options struct {
	ParentRoot          string
	ExcludedDirectories []string
	Parallel            bool
	ContinueOnFailure   bool
	UnitOptions         migrate.Options
}

// UnitOutcome reports one unit's migration result.
type UnitOutcome struct {
	SolutionRoot string                  `json:"solutionRoot"`
	Result       migrate.MigrationResult `json:"result"`
	ErrorMessage string                  `json:"error,omitempty"`
}

// BatchResult aggregates all unit outcomes of one batch run. Totals are the
// sums of the corresponding per-unit counts.
type BatchResult struct {
	ExitCode       migrate.ExitCode `json:"exitCode"`
	UnitsTotal     int              `json:"unitsTotal"`
	UnitsSucceeded int              `json:"unitsSucceeded"`
	UnitsFailed    int              `json:"unitsFailed"`
	TotalProjects  int              `json:"totalProjects"`
	TotalPackages  int              `json:"totalPackages"`
	TotalConflicts int              `json:"totalConflicts"`
	Outcomes       []UnitOutcome    `json:"outcomes"`
}

// ServiceDependencies describes required collaborators for batch runs.
type ServiceDependencies struct {
	Logger     *zap.Logger
	Reporter   shared.Reporter
	Discoverer UnitDiscoverer
	UnitRunner UnitRunner
}

// Service fans a migration out across discovered units.
type Service struct {
	logger     *zap.Logger
	reporter   shared.Reporter
	discoverer UnitDiscoverer
	unitRunner UnitRunner
}

// NewService constructs a batch service with the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Reporter == nil {
		return nil, errReporterMissing
	}
	if dependencies.Discoverer == nil {
		return nil, errDiscovererMissing
	}
	if dependencies.UnitRunner == nil {
		return nil, errUnitRunnerMissing
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	service := &Service{
		logger:     logger,
		reporter:   dependencies.Reporter,
		discoverer: dependencies.Discoverer,
		unitRunner: dependencies.UnitRunner,
	}

	return service, nil
}

// Execute discovers units and migrates each of them. Outcomes keep unit
// discovery order regardless of execution order.
func (service *Service) Execute(executionContext context.Context, options Options) (BatchResult, error) {
	result := BatchResult{}

	if len(strings.TrimSpace(options.ParentRoot)) == 0 {
		result.ExitCode = migrate.ExitCodeValidationError
		validationError := migrate.InvalidInputError{FieldName: parentRootFieldNameConstant, Message: requiredParentMessageConstant}
		service.reporter.Error(validationError.Error())
		return result, validationError
	}

	unitRoots, discoveryError := service.discoverer.DiscoverUnits(options.ParentRoot, options.ExcludedDirectories)
	if discoveryError != nil {
		result.ExitCode = migrate.ExitCodeFileOperationError
		wrappedError := fmt.Errorf(discoveryFailedTemplateConstant, discoveryError)
		service.reporter.Error(wrappedError.Error())
		return result, wrappedError
	}
	if len(unitRoots) == 0 {
		result.ExitCode = migrate.ExitCodeNoProjectsFound
		service.reporter.Warn(fmt.Sprintf(noUnitsFoundTemplateConstant, options.ParentRoot))
		return result, nil
	}

	result.UnitsTotal = len(unitRoots)
	service.logger.Info(batchStartedLogMessageConstant,
		zap.String(parentRootFieldNameConstant, options.ParentRoot),
		zap.Int(unitCountLogFieldConstant, len(unitRoots)),
	)

	if options.Parallel {
		result.Outcomes = service.runParallel(executionContext, options, unitRoots)
	} else {
		result.Outcomes = service.runSequential(executionContext, options, unitRoots)
	}

	service.aggregate(&result)
	service.reporter.Info(fmt.Sprintf(batchSummaryTemplateConstant, result.UnitsSucceeded, result.UnitsFailed, result.UnitsTotal))
	return result, nil
}

// unitFailed is the one failure predicate shared by stop-on-failure and
// aggregation; a unit ending with any non-success exit code counts as failed
// even when its runner returned no error.
func unitFailed(outcome UnitOutcome) bool {
	return outcome.Result.ExitCode != migrate.ExitCodeSuccess || len(outcome.ErrorMessage) > 0
}

func (service *Service) runSequential(executionContext context.Context, options Options, unitRoots []string) []UnitOutcome {
	var outcomes []UnitOutcome
	for _, unitRoot := range unitRoots {
		outcome := service.runUnit(executionContext, options, unitRoot)
		outcomes = append(outcomes, outcome)

		if unitFailed(outcome) && !options.ContinueOnFailure {
			service.reporter.Warn(unitStoppedMessageConstant)
			break
		}
	}
	return outcomes
}

// runParallel fans all units out at once. Once units are in flight every
// failure is collected rather than aborting the batch; the indexed outcomes
// slice keeps results in discovery order, so reporting stays deterministic.
func (service *Service) runParallel(executionContext context.Context, options Options, unitRoots []string) []UnitOutcome {
	outcomes := make([]UnitOutcome, len(unitRoots))

	group := &errgroup.Group{}
	group.SetLimit(runtime.NumCPU())

	for unitIndex, unitRoot := range unitRoots {
		unitIndex, unitRoot := unitIndex, unitRoot
		group.Go(func() error {
			outcomes[unitIndex] = service.runUnit(executionContext, options, unitRoot)
			return nil
		})
	}

	_ = group.Wait()

	return outcomes
}

func (service *Service) runUnit(executionContext context.Context, options Options, unitRoot string) UnitOutcome {
	service.reporter.Info(fmt.Sprintf(unitStartedTemplateConstant, unitRoot))
	service.logger.Info(unitStartedLogMessageConstant, zap.String(unitLogFieldConstant, unitRoot))

	unitOptions := options.UnitOptions
	unitOptions.SolutionRoot = unitRoot

	unitResult, unitError := service.unitRunner(executionContext, unitOptions)
	outcome := UnitOutcome{SolutionRoot: unitRoot, Result: unitResult}
	if unitError != nil {
		outcome.ErrorMessage = unitError.Error()
		service.reporter.Error(fmt.Sprintf(unitFailedTemplateConstant, unitRoot, unitError))
	}
	return outcome
}

// aggregate folds unit outcomes into one classification. Version conflicts
// outrank file operation failures so the batch exit code names the most
// actionable problem.
func (service *Service) aggregate(result *BatchResult) {
	exitCodePriority := []migrate.ExitCode{
		migrate.ExitCodeVersionConflict,
		migrate.ExitCodeFileOperationError,
		migrate.ExitCodeUnexpectedError,
		migrate.ExitCodeValidationError,
		migrate.ExitCodeAnalysisIssuesFound,
		migrate.ExitCodeNoProjectsFound,
	}

	observedCodes := make(map[migrate.ExitCode]bool)
	for _, outcome := range result.Outcomes {
		result.TotalProjects += outcome.Result.ProjectsProcessed
		result.TotalPackages += outcome.Result.PackagesFound
		result.TotalConflicts += outcome.Result.ConflictsResolved
		if !unitFailed(outcome) {
			result.UnitsSucceeded++
			continue
		}
		result.UnitsFailed++
		observedCodes[outcome.Result.ExitCode] = true
	}

	result.ExitCode = migrate.ExitCodeSuccess
	for _, candidateCode := range exitCodePriority {
		if observedCodes[candidateCode] {
			result.ExitCode = candidateCode
			return
		}
	}
	if result.UnitsFailed > 0 {
		result.ExitCode = migrate.ExitCodeUnexpectedError
	}
}
