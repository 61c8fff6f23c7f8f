package migrate_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/centralpkg/cpmig/internal/migrate"
	"github.com/centralpkg/cpmig/internal/resolve"
)

type fakeExecutor struct {
	capturedOptions []migrate.Options
	result          migrate.MigrationResult
	runError        error
	pruneKeepCount  int
}

func (executor *fakeExecutor) Execute(_ context.Context, options migrate.Options) (migrate.MigrationResult, error) {
	executor.capturedOptions = append(executor.capturedOptions, options)
	if options.Mode == migrate.RunModeRollback {
		return migrate.MigrationResult{ExitCode: migrate.ExitCodeSuccess}, nil
	}
	return executor.result, executor.runError
}

func (executor *fakeExecutor) PruneBackupHistory(string, string, int) (migrate.ExitCode, error) {
	executor.pruneKeepCount++
	return migrate.ExitCodeSuccess, nil
}

func (executor *fakeExecutor) ClearBackupHistory(string, string) (migrate.ExitCode, error) {
	return migrate.ExitCodeSuccess, nil
}

func newCommandBuilder(executor *fakeExecutor) *migrate.CommandBuilder {
	return &migrate.CommandBuilder{Executor: executor}
}

func TestMigrateCommandParsesFlags(t *testing.T) {
	executor := &fakeExecutor{}
	builder := newCommandBuilder(executor)

	command, buildError := builder.BuildMigrateCommand()
	require.NoError(t, buildError)

	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{
		"/tmp/solution",
		"--strategy", "lowest",
		"--dry-run",
		"--no-backup",
		"--merge",
		"--analyze-transitive",
		"--assume-yes",
	})

	require.NoError(t, command.Execute())
	require.Len(t, executor.capturedOptions, 1)

	options := executor.capturedOptions[0]
	require.Equal(t, "/tmp/solution", options.SolutionRoot)
	require.Equal(t, migrate.RunModeMigrate, options.Mode)
	require.Equal(t, resolve.StrategyLowest, options.Strategy)
	require.True(t, options.DryRun)
	require.False(t, options.BackupsEnabled)
	require.True(t, options.MergeExisting)
	require.True(t, options.AnalyzeTransitive)
	require.True(t, options.AssumeYes)
	require.Equal(t, migrate.DefaultBackupDirectoryNameConstant, options.BackupDirectoryName)
}

func TestMigrateCommandMapsExitCode(t *testing.T) {
	executor := &fakeExecutor{
		result:   migrate.MigrationResult{ExitCode: migrate.ExitCodeVersionConflict},
		runError: errors.New("conflicts detected"),
	}
	builder := newCommandBuilder(executor)

	command, buildError := builder.BuildMigrateCommand()
	require.NoError(t, buildError)

	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{"--strategy", "fail"})

	executionError := command.Execute()
	require.Error(t, executionError)

	var exitError migrate.ExitError
	require.ErrorAs(t, executionError, &exitError)
	require.Equal(t, migrate.ExitCodeVersionConflict, exitError.Code)
}

func TestMigrateCommandRollsBackRecoverableFailureWithAssumeYes(t *testing.T) {
	executor := &fakeExecutor{
		result: migrate.MigrationResult{ExitCode: migrate.ExitCodeFileOperationError},
		runError: migrate.RecoverableError{
			Cause:           errors.New("write failed"),
			BackupDirectory: "/tmp/solution/.cpmig-backups",
			ExitCode:        migrate.ExitCodeFileOperationError,
		},
	}
	builder := newCommandBuilder(executor)

	command, buildError := builder.BuildMigrateCommand()
	require.NoError(t, buildError)

	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{"/tmp/solution", "--assume-yes"})

	executionError := command.Execute()
	require.Error(t, executionError)

	var exitError migrate.ExitError
	require.ErrorAs(t, executionError, &exitError)
	require.Equal(t, migrate.ExitCodeFileOperationError, exitError.Code)

	require.Len(t, executor.capturedOptions, 2)
	require.Equal(t, migrate.RunModeRollback, executor.capturedOptions[1].Mode)
	require.True(t, executor.capturedOptions[1].AssumeYes)
}

func TestMigrateCommandEmitsJSONResult(t *testing.T) {
	executor := &fakeExecutor{result: migrate.MigrationResult{ExitCode: migrate.ExitCodeSuccess, RunID: "run-1"}}
	builder := newCommandBuilder(executor)

	command, buildError := builder.BuildMigrateCommand()
	require.NoError(t, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{"--json"})

	require.NoError(t, command.Execute())
	require.Contains(t, outputBuffer.String(), `"runId": "run-1"`)
	require.Contains(t, outputBuffer.String(), `"exitCode": 0`)
}

func TestAnalyzeCommandUsesAnalyzeMode(t *testing.T) {
	executor := &fakeExecutor{result: migrate.MigrationResult{ExitCode: migrate.ExitCodeSuccess}}
	builder := newCommandBuilder(executor)

	command, buildError := builder.BuildAnalyzeCommand()
	require.NoError(t, buildError)

	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{})

	require.NoError(t, command.Execute())
	require.Len(t, executor.capturedOptions, 1)
	require.Equal(t, migrate.RunModeAnalyze, executor.capturedOptions[0].Mode)
}

func TestRollbackCommandUsesRollbackMode(t *testing.T) {
	executor := &fakeExecutor{}
	builder := newCommandBuilder(executor)

	command, buildError := builder.BuildRollbackCommand()
	require.NoError(t, buildError)

	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{"--assume-yes"})

	require.NoError(t, command.Execute())
	require.Len(t, executor.capturedOptions, 1)
	require.Equal(t, migrate.RunModeRollback, executor.capturedOptions[0].Mode)
}

func TestBackupsPruneRejectsNegativeKeepCount(t *testing.T) {
	executor := &fakeExecutor{}
	builder := newCommandBuilder(executor)

	command, buildError := builder.BuildBackupsCommand()
	require.NoError(t, buildError)

	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{"prune", "--keep", "-1"})

	executionError := command.Execute()
	require.Error(t, executionError)

	var exitError migrate.ExitError
	require.ErrorAs(t, executionError, &exitError)
	require.Equal(t, migrate.ExitCodeValidationError, exitError.Code)
	require.Zero(t, executor.pruneKeepCount)
}

func TestBackupsPruneInvokesExecutor(t *testing.T) {
	executor := &fakeExecutor{}
	builder := newCommandBuilder(executor)

	command, buildError := builder.BuildBackupsCommand()
	require.NoError(t, buildError)

	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{"prune", "--keep", "2"})

	require.NoError(t, command.Execute())
	require.Equal(t, 1, executor.pruneKeepCount)
}
