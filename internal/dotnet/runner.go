// Package dotnet runs the dotnet CLI for restore verification and transitive
// scans. Invocations are fire-and-wait under an explicit timeout; expiry is a
// recoverable condition, never a crash.
package dotnet

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

const (
	dotnetExecutableNameConstant   = "dotnet"
	restoreSubcommandConstant      = "restore"
	defaultInvocationTimeout       = 120 * time.Second
	commandStartedMessageConstant  = "Running dotnet"
	commandFinishedMessageConstant = "dotnet finished"
	argumentsFieldConstant         = "arguments"
	exitCodeFieldConstant          = "exit_code"
	workingDirectoryFieldConstant  = "working_directory"
)

// CommandDetails describes one dotnet invocation.
type CommandDetails struct {
	Arguments        []string
	WorkingDirectory string
}

// ExecutionResult captures the observable outcome of a dotnet invocation.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// Runner executes dotnet commands.
type Runner interface {
	Run(executionContext context.Context, details CommandDetails) (ExecutionResult, error)
}

// OSRunner implements Runner using os/exec with a bounded timeout.
type OSRunner struct {
	logger  *zap.Logger
	timeout time.Duration
}

// NewOSRunner constructs a runner with the default invocation timeout.
func NewOSRunner(logger *zap.Logger) *OSRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OSRunner{logger: logger, timeout: defaultInvocationTimeout}
}

// Run executes dotnet with the provided details. Non-zero exits are results,
// not errors; context expiry surfaces as the context error for callers to
// degrade on.
func (runner *OSRunner) Run(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	boundedContext, cancelInvocation := context.WithTimeout(executionContext, runner.timeout)
	defer cancelInvocation()

	runner.logger.Debug(commandStartedMessageConstant,
		zap.Strings(argumentsFieldConstant, details.Arguments),
		zap.String(workingDirectoryFieldConstant, details.WorkingDirectory),
	)

	executable := exec.CommandContext(boundedContext, dotnetExecutableNameConstant, details.Arguments...)
	if len(details.WorkingDirectory) > 0 {
		executable.Dir = details.WorkingDirectory
	}

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	executable.Stdout = &standardOutputBuffer
	executable.Stderr = &standardErrorBuffer

	runError := executable.Run()
	if contextError := boundedContext.Err(); contextError != nil {
		return ExecutionResult{}, contextError
	}
	if runError != nil {
		exitError := &exec.ExitError{}
		if errors.As(runError, &exitError) {
			result := ExecutionResult{
				StandardOutput: standardOutputBuffer.String(),
				StandardError:  standardErrorBuffer.String(),
				ExitCode:       exitError.ExitCode(),
			}
			runner.logger.Debug(commandFinishedMessageConstant, zap.Int(exitCodeFieldConstant, result.ExitCode))
			return result, nil
		}
		return ExecutionResult{}, runError
	}

	result := ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
		ExitCode:       0,
	}
	runner.logger.Debug(commandFinishedMessageConstant, zap.Int(exitCodeFieldConstant, result.ExitCode))
	return result, nil
}

// Restore invokes dotnet restore for the provided directory.
func Restore(executionContext context.Context, runner Runner, workingDirectory string) (ExecutionResult, error) {
	return runner.Run(executionContext, CommandDetails{
		Arguments:        []string{restoreSubcommandConstant},
		WorkingDirectory: workingDirectory,
	})
}
