package migrate

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/centralpkg/cpmig/internal/resolve"
)

const (
	conflictHeaderTemplateConstant   = "Conflicting versions requested for %s:\n"
	conflictOptionTemplateConstant   = "  [%d] %s\n"
	conflictChoicePromptConstant     = "Choose [h]ighest, [l]owest, a number, or [q]uit: "
	choiceHighestShortConstant       = "h"
	choiceHighestLongConstant        = "highest"
	choiceLowestShortConstant        = "l"
	choiceLowestLongConstant         = "lowest"
	choiceQuitShortConstant          = "q"
	choiceQuitLongConstant           = "quit"
	choiceReadFailedTemplateConstant = "unable to read conflict decision: %w"
	choiceUnrecognizedConstant       = "Unrecognized choice; try again\n"
)

// IOConflictDecider resolves conflicts by prompting on the attached streams.
type IOConflictDecider struct {
	reader *bufio.Reader
	output io.Writer
}

// NewIOConflictDecider constructs a decider over the provided streams.
func NewIOConflictDecider(input io.Reader, output io.Writer) *IOConflictDecider {
	return &IOConflictDecider{reader: bufio.NewReader(input), output: output}
}

// Decide presents the conflicting versions and translates the answer into a
// resolution action. Unrecognized answers re-prompt; EOF aborts.
func (decider *IOConflictDecider) Decide(packageName string, versions []string) (resolve.ResolutionAction, error) {
	fmt.Fprintf(decider.output, conflictHeaderTemplateConstant, packageName)
	for versionIndex, version := range versions {
		fmt.Fprintf(decider.output, conflictOptionTemplateConstant, versionIndex+1, version)
	}

	for {
		fmt.Fprint(decider.output, conflictChoicePromptConstant)

		answerLine, readError := decider.reader.ReadString('\n')
		if readError != nil && len(strings.TrimSpace(answerLine)) == 0 {
			if readError == io.EOF {
				return resolve.ResolutionAction{Kind: resolve.ResolutionActionAbort}, nil
			}
			return resolve.ResolutionAction{}, fmt.Errorf(choiceReadFailedTemplateConstant, readError)
		}

		answer := strings.ToLower(strings.TrimSpace(answerLine))
		switch answer {
		case choiceHighestShortConstant, choiceHighestLongConstant:
			return resolve.ResolutionAction{Kind: resolve.ResolutionActionUseHighest}, nil
		case choiceLowestShortConstant, choiceLowestLongConstant:
			return resolve.ResolutionAction{Kind: resolve.ResolutionActionUseLowest}, nil
		case choiceQuitShortConstant, choiceQuitLongConstant:
			return resolve.ResolutionAction{Kind: resolve.ResolutionActionAbort}, nil
		}

		if optionNumber, conversionError := strconv.Atoi(answer); conversionError == nil && optionNumber >= 1 && optionNumber <= len(versions) {
			return resolve.ResolutionAction{Kind: resolve.ResolutionActionPickVersion, Version: versions[optionNumber-1]}, nil
		}

		fmt.Fprint(decider.output, choiceUnrecognizedConstant)
	}
}
