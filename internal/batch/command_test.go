package batch_test

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/centralpkg/cpmig/internal/batch"
	"github.com/centralpkg/cpmig/internal/migrate"
	"github.com/centralpkg/cpmig/internal/resolve"
)

func TestBatchCommandParsesFlags(t *testing.T) {
	var capturedOptions []migrate.Options
	var mutex sync.Mutex

	builder := &batch.CommandBuilder{
		Discoverer: &fixedDiscoverer{unitRoots: []string{"/work/a", "/work/b"}},
		UnitRunner: func(_ context.Context, options migrate.Options) (migrate.MigrationResult, error) {
			mutex.Lock()
			capturedOptions = append(capturedOptions, options)
			mutex.Unlock()
			return migrate.MigrationResult{ExitCode: migrate.ExitCodeSuccess}, nil
		},
	}

	command, buildError := builder.Build()
	require.NoError(t, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(outputBuffer)
	command.SetArgs([]string{"/work", "--strategy", "lowest", "--dry-run", "--parallel", "--exclude", "Archived"})

	require.NoError(t, command.Execute())
	require.Len(t, capturedOptions, 2)
	for _, unitOptions := range capturedOptions {
		require.Equal(t, resolve.StrategyLowest, unitOptions.Strategy)
		require.True(t, unitOptions.DryRun)
		require.Equal(t, migrate.RunModeMigrate, unitOptions.Mode)
	}
}

func TestBatchCommandMapsFailureToExitError(t *testing.T) {
	builder := &batch.CommandBuilder{
		Discoverer: &fixedDiscoverer{unitRoots: []string{"/work/a"}},
		UnitRunner: func(context.Context, migrate.Options) (migrate.MigrationResult, error) {
			return migrate.MigrationResult{ExitCode: migrate.ExitCodeVersionConflict}, migrate.ExitError{Code: migrate.ExitCodeVersionConflict}
		},
	}

	command, buildError := builder.Build()
	require.NoError(t, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(outputBuffer)
	command.SetArgs([]string{"/work"})

	executionError := command.Execute()
	require.Error(t, executionError)

	var exitError migrate.ExitError
	require.ErrorAs(t, executionError, &exitError)
	require.Equal(t, migrate.ExitCodeVersionConflict, exitError.Code)
}
