package shared

import (
	"bufio"
	"io"
	"strings"
)

const (
	affirmativeShortResponseConstant = "y"
	affirmativeLongResponseConstant  = "yes"
	applyToAllResponseConstant       = "a"
	applyToAllLongResponseConstant   = "all"
)

// IOConfirmationPrompter reads confirmation responses from an io.Reader.
type IOConfirmationPrompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewIOConfirmationPrompter constructs a prompter from the provided reader and writer.
func NewIOConfirmationPrompter(input io.Reader, output io.Writer) *IOConfirmationPrompter {
	return &IOConfirmationPrompter{reader: bufio.NewReader(input), writer: output}
}

// Confirm writes the prompt and interprets affirmative responses (y/yes/a/all).
func (prompter *IOConfirmationPrompter) Confirm(prompt string) (ConfirmationResult, error) {
	if prompter.writer != nil {
		if _, writeError := io.WriteString(prompter.writer, prompt); writeError != nil {
			return ConfirmationResult{}, writeError
		}
	}

	response, readError := prompter.reader.ReadString('\n')
	if readError != nil && readError != io.EOF {
		return ConfirmationResult{}, readError
	}

	trimmedResponse := strings.TrimSpace(strings.ToLower(response))
	switch trimmedResponse {
	case affirmativeShortResponseConstant, affirmativeLongResponseConstant:
		return ConfirmationResult{Confirmed: true}, nil
	case applyToAllResponseConstant, applyToAllLongResponseConstant:
		return ConfirmationResult{Confirmed: true, ApplyToAll: true}, nil
	default:
		return ConfirmationResult{}, nil
	}
}

// AssumeYesPrompter confirms every prompt without consulting the user.
type AssumeYesPrompter struct{}

// Confirm reports an affirmative result for any prompt.
func (AssumeYesPrompter) Confirm(string) (ConfirmationResult, error) {
	return ConfirmationResult{Confirmed: true, ApplyToAll: true}, nil
}
