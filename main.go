package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/centralpkg/cpmig/cmd/cli"
	"github.com/centralpkg/cpmig/internal/migrate"
)

const exitErrorTemplateConstant = "%v\n"

// main executes the cpmig command-line application and terminates with the
// run's exit classification.
func main() {
	executionError := cli.Execute()
	if executionError == nil {
		return
	}

	var exitError migrate.ExitError
	if errors.As(executionError, &exitError) {
		os.Exit(int(exitError.Code))
	}

	fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
	os.Exit(int(migrate.ExitCodeValidationError))
}
