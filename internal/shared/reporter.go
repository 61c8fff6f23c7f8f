package shared

import (
	"fmt"
	"io"
	"strings"
)

const (
	warningPrefixConstant       = "WARNING: "
	errorPrefixConstant         = "ERROR: "
	tableColumnSeparatorLiteral = "  "
	tableHeaderUnderlineRune    = "-"
	lineTerminatorLiteral       = "\n"
)

// WriterReporter renders reporter messages and tables to io.Writer targets.
type WriterReporter struct {
	output io.Writer
	errors io.Writer
}

// NewWriterReporter constructs a reporter writing informational output and errors to the provided writers.
func NewWriterReporter(output io.Writer, errors io.Writer) *WriterReporter {
	return &WriterReporter{output: output, errors: errors}
}

// Info writes an informational message.
func (reporter *WriterReporter) Info(message string) {
	reporter.writeLine(reporter.output, message)
}

// Warn writes a warning message to the error stream.
func (reporter *WriterReporter) Warn(message string) {
	reporter.writeLine(reporter.errors, warningPrefixConstant+message)
}

// Error writes an error message to the error stream.
func (reporter *WriterReporter) Error(message string) {
	reporter.writeLine(reporter.errors, errorPrefixConstant+message)
}

// Table renders rows under headers using column-aligned plain text.
func (reporter *WriterReporter) Table(headers []string, rows [][]string) {
	columnWidths := make([]int, len(headers))
	for columnIndex, header := range headers {
		columnWidths[columnIndex] = len(header)
	}
	for _, row := range rows {
		for columnIndex, cell := range row {
			if columnIndex < len(columnWidths) && len(cell) > columnWidths[columnIndex] {
				columnWidths[columnIndex] = len(cell)
			}
		}
	}

	reporter.writeLine(reporter.output, formatTableRow(headers, columnWidths))

	underlines := make([]string, len(headers))
	for headerIndex, header := range headers {
		underlines[headerIndex] = strings.Repeat(tableHeaderUnderlineRune, len(header))
	}
	reporter.writeLine(reporter.output, formatTableRow(underlines, columnWidths))

	for _, row := range rows {
		reporter.writeLine(reporter.output, formatTableRow(row, columnWidths))
	}
}

func (reporter *WriterReporter) writeLine(target io.Writer, message string) {
	if target == nil {
		return
	}
	fmt.Fprint(target, message+lineTerminatorLiteral)
}

func formatTableRow(cells []string, columnWidths []int) string {
	paddedCells := make([]string, len(cells))
	for cellIndex, cell := range cells {
		width := len(cell)
		if cellIndex < len(columnWidths) {
			width = columnWidths[cellIndex]
		}
		paddedCells[cellIndex] = cell + strings.Repeat(" ", width-len(cell))
	}
	return strings.TrimRight(strings.Join(paddedCells, tableColumnSeparatorLiteral), " ")
}
