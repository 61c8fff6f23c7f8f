package batch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/centralpkg/cpmig/internal/batch"
	"github.com/centralpkg/cpmig/internal/migrate"
)

type recordingReporter struct {
	mutex         sync.Mutex
	infoMessages  []string
	warnMessages  []string
	errorMessages []string
}

func (reporter *recordingReporter) Info(message string) {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()
	reporter.infoMessages = append(reporter.infoMessages, message)
}

func (reporter *recordingReporter) Warn(message string) {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()
	reporter.warnMessages = append(reporter.warnMessages, message)
}

func (reporter *recordingReporter) Error(message string) {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()
	reporter.errorMessages = append(reporter.errorMessages, message)
}

func (reporter *recordingReporter) Table([]string, [][]string) {}

type fixedDiscoverer struct {
	unitRoots []string
}

func (discoverer *fixedDiscoverer) DiscoverUnits(string, []string) ([]string, error) {
	return discoverer.unitRoots, nil
}

func newBatchService(t *testing.T, discoverer batch.UnitDiscoverer, unitRunner batch.UnitRunner) *batch.Service {
	t.Helper()

	service, creationError := batch.NewService(batch.ServiceDependencies{
		Reporter:   &recordingReporter{},
		Discoverer: discoverer,
		UnitRunner: unitRunner,
	})
	require.NoError(t, creationError)

	return service
}

func successfulRunner(executedRoots *[]string, mutex *sync.Mutex) batch.UnitRunner {
	return func(_ context.Context, options migrate.Options) (migrate.MigrationResult, error) {
		mutex.Lock()
		*executedRoots = append(*executedRoots, options.SolutionRoot)
		mutex.Unlock()
		return migrate.MigrationResult{ExitCode: migrate.ExitCodeSuccess}, nil
	}
}

func TestBatchSequentialStopsOnFirstFailure(t *testing.T) {
	discoverer := &fixedDiscoverer{unitRoots: []string{"/work/a", "/work/b", "/work/c"}}
	unitRunner := func(_ context.Context, options migrate.Options) (migrate.MigrationResult, error) {
		if options.SolutionRoot == "/work/b" {
			return migrate.MigrationResult{ExitCode: migrate.ExitCodeFileOperationError}, errors.New("write failed")
		}
		return migrate.MigrationResult{ExitCode: migrate.ExitCodeSuccess}, nil
	}

	service := newBatchService(t, discoverer, unitRunner)

	result, runError := service.Execute(context.Background(), batch.Options{ParentRoot: "/work"})
	require.NoError(t, runError)
	require.Equal(t, migrate.ExitCodeFileOperationError, result.ExitCode)
	require.Len(t, result.Outcomes, 2)
	require.Equal(t, 1, result.UnitsSucceeded)
	require.Equal(t, 1, result.UnitsFailed)
}

func TestBatchContinueOnFailureProcessesAllUnits(t *testing.T) {
	discoverer := &fixedDiscoverer{unitRoots: []string{"/work/a", "/work/b", "/work/c"}}
	unitRunner := func(_ context.Context, options migrate.Options) (migrate.MigrationResult, error) {
		if options.SolutionRoot == "/work/b" {
			return migrate.MigrationResult{ExitCode: migrate.ExitCodeVersionConflict}, errors.New("conflicts detected")
		}
		return migrate.MigrationResult{ExitCode: migrate.ExitCodeSuccess}, nil
	}

	service := newBatchService(t, discoverer, unitRunner)

	options := batch.Options{ParentRoot: "/work", ContinueOnFailure: true}
	result, runError := service.Execute(context.Background(), options)
	require.NoError(t, runError)
	require.Equal(t, migrate.ExitCodeVersionConflict, result.ExitCode)
	require.Len(t, result.Outcomes, 3)
	require.Equal(t, 2, result.UnitsSucceeded)
	require.Equal(t, 1, result.UnitsFailed)
}

func TestBatchParallelKeepsDiscoveryOrder(t *testing.T) {
	unitRoots := []string{"/work/a", "/work/b", "/work/c", "/work/d"}
	discoverer := &fixedDiscoverer{unitRoots: unitRoots}

	unitRunner := func(_ context.Context, options migrate.Options) (migrate.MigrationResult, error) {
		if options.SolutionRoot == "/work/a" {
			time.Sleep(20 * time.Millisecond)
		}
		return migrate.MigrationResult{ExitCode: migrate.ExitCodeSuccess}, nil
	}

	service := newBatchService(t, discoverer, unitRunner)

	options := batch.Options{ParentRoot: "/work", Parallel: true}
	result, runError := service.Execute(context.Background(), options)
	require.NoError(t, runError)
	require.Equal(t, migrate.ExitCodeSuccess, result.ExitCode)
	require.Len(t, result.Outcomes, len(unitRoots))
	for outcomeIndex, outcome := range result.Outcomes {
		require.Equal(t, unitRoots[outcomeIndex], outcome.SolutionRoot)
	}
}

func TestBatchSequentialStopsOnNonSuccessExitWithoutError(t *testing.T) {
	discoverer := &fixedDiscoverer{unitRoots: []string{"/work/a", "/work/b", "/work/c"}}
	unitRunner := func(_ context.Context, options migrate.Options) (migrate.MigrationResult, error) {
		if options.SolutionRoot == "/work/b" {
			return migrate.MigrationResult{ExitCode: migrate.ExitCodeNoProjectsFound}, nil
		}
		return migrate.MigrationResult{ExitCode: migrate.ExitCodeSuccess}, nil
	}

	service := newBatchService(t, discoverer, unitRunner)

	result, runError := service.Execute(context.Background(), batch.Options{ParentRoot: "/work"})
	require.NoError(t, runError)
	require.Equal(t, migrate.ExitCodeNoProjectsFound, result.ExitCode)
	require.Len(t, result.Outcomes, 2)
	require.Equal(t, 1, result.UnitsSucceeded)
	require.Equal(t, 1, result.UnitsFailed)
}

func TestBatchParallelCollectsEveryFailure(t *testing.T) {
	unitRoots := []string{"/work/a", "/work/b", "/work/c"}
	discoverer := &fixedDiscoverer{unitRoots: unitRoots}

	unitRunner := func(_ context.Context, options migrate.Options) (migrate.MigrationResult, error) {
		if options.SolutionRoot == "/work/b" {
			return migrate.MigrationResult{ExitCode: migrate.ExitCodeFileOperationError}, errors.New("write failed")
		}
		return migrate.MigrationResult{ExitCode: migrate.ExitCodeSuccess}, nil
	}

	service := newBatchService(t, discoverer, unitRunner)

	options := batch.Options{ParentRoot: "/work", Parallel: true}
	result, runError := service.Execute(context.Background(), options)
	require.NoError(t, runError)
	require.Equal(t, migrate.ExitCodeFileOperationError, result.ExitCode)
	require.Len(t, result.Outcomes, len(unitRoots))
	require.Equal(t, 2, result.UnitsSucceeded)
	require.Equal(t, 1, result.UnitsFailed)
}

func TestBatchSumsPerUnitCounts(t *testing.T) {
	discoverer := &fixedDiscoverer{unitRoots: []string{"/work/a", "/work/b"}}
	unitRunner := func(_ context.Context, options migrate.Options) (migrate.MigrationResult, error) {
		if options.SolutionRoot == "/work/a" {
			return migrate.MigrationResult{ExitCode: migrate.ExitCodeSuccess, ProjectsProcessed: 2, PackagesFound: 5, ConflictsResolved: 1}, nil
		}
		return migrate.MigrationResult{ExitCode: migrate.ExitCodeSuccess, ProjectsProcessed: 3, PackagesFound: 4}, nil
	}

	service := newBatchService(t, discoverer, unitRunner)

	result, runError := service.Execute(context.Background(), batch.Options{ParentRoot: "/work"})
	require.NoError(t, runError)
	require.Equal(t, 5, result.TotalProjects)
	require.Equal(t, 9, result.TotalPackages)
	require.Equal(t, 1, result.TotalConflicts)
}

func TestBatchAggregatePrefersVersionConflict(t *testing.T) {
	discoverer := &fixedDiscoverer{unitRoots: []string{"/work/a", "/work/b"}}
	unitRunner := func(_ context.Context, options migrate.Options) (migrate.MigrationResult, error) {
		if options.SolutionRoot == "/work/a" {
			return migrate.MigrationResult{ExitCode: migrate.ExitCodeFileOperationError}, errors.New("write failed")
		}
		return migrate.MigrationResult{ExitCode: migrate.ExitCodeVersionConflict}, errors.New("conflicts detected")
	}

	service := newBatchService(t, discoverer, unitRunner)

	options := batch.Options{ParentRoot: "/work", ContinueOnFailure: true}
	result, runError := service.Execute(context.Background(), options)
	require.NoError(t, runError)
	require.Equal(t, migrate.ExitCodeVersionConflict, result.ExitCode)
}

func TestBatchWithoutUnitsReportsNoProjects(t *testing.T) {
	service := newBatchService(t, &fixedDiscoverer{}, func(context.Context, migrate.Options) (migrate.MigrationResult, error) {
		return migrate.MigrationResult{}, nil
	})

	result, runError := service.Execute(context.Background(), batch.Options{ParentRoot: "/work"})
	require.NoError(t, runError)
	require.Equal(t, migrate.ExitCodeNoProjectsFound, result.ExitCode)
}

func TestBatchValidatesParentRoot(t *testing.T) {
	service := newBatchService(t, &fixedDiscoverer{}, func(context.Context, migrate.Options) (migrate.MigrationResult, error) {
		return migrate.MigrationResult{}, nil
	})

	result, runError := service.Execute(context.Background(), batch.Options{ParentRoot: "  "})
	require.Error(t, runError)
	require.Equal(t, migrate.ExitCodeValidationError, result.ExitCode)

	var inputError migrate.InvalidInputError
	require.ErrorAs(t, runError, &inputError)
}

func TestBatchRunsEveryDiscoveredUnit(t *testing.T) {
	unitRoots := []string{"/work/a", "/work/b", "/work/c"}
	discoverer := &fixedDiscoverer{unitRoots: unitRoots}

	var executedRoots []string
	var mutex sync.Mutex
	service := newBatchService(t, discoverer, successfulRunner(&executedRoots, &mutex))

	result, runError := service.Execute(context.Background(), batch.Options{ParentRoot: "/work"})
	require.NoError(t, runError)
	require.Equal(t, migrate.ExitCodeSuccess, result.ExitCode)
	require.ElementsMatch(t, unitRoots, executedRoots)
	require.Equal(t, len(unitRoots), result.UnitsSucceeded)
}
