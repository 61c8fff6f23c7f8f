package utils

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	standardErrorOutputPathConstant      = "stderr"
	structuredEncodingNameConstant       = "json"
	consoleEncodingNameConstant          = "console"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Supported log levels, ordered from most to least verbose.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Supported log formats.
const (
	LogFormatStructured LogFormat = "structured"
	LogFormatConsole    LogFormat = "console"
)

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct{}

// NewLoggerFactory constructs a new logger factory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

func translateLogLevel(requestedLogLevel LogLevel) (zapcore.Level, error) {
	switch requestedLogLevel {
	case LogLevelDebug:
		return zapcore.DebugLevel, nil
	case LogLevelInfo:
		return zapcore.InfoLevel, nil
	case LogLevelWarn:
		return zapcore.WarnLevel, nil
	case LogLevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InvalidLevel, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}
}

func translateLogFormat(requestedLogFormat LogFormat) (string, error) {
	switch requestedLogFormat {
	case LogFormatStructured:
		return structuredEncodingNameConstant, nil
	case LogFormatConsole:
		return consoleEncodingNameConstant, nil
	default:
		return "", fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}
}

// CreateLogger produces a zap.Logger honoring the requested log level and
// format. Console output uses human-readable timestamps and level names;
// structured output is production JSON. Diagnostics go to standard error so
// command output on standard output stays machine-consumable.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	translatedLevel, levelError := translateLogLevel(requestedLogLevel)
	if levelError != nil {
		return nil, levelError
	}

	translatedEncoding, formatError := translateLogFormat(requestedLogFormat)
	if formatError != nil {
		return nil, formatError
	}

	loggerConfiguration := zap.NewProductionConfig()
	loggerConfiguration.Level = zap.NewAtomicLevelAt(translatedLevel)
	loggerConfiguration.Encoding = translatedEncoding
	loggerConfiguration.OutputPaths = []string{standardErrorOutputPathConstant}
	loggerConfiguration.ErrorOutputPaths = []string{standardErrorOutputPathConstant}
	if requestedLogFormat == LogFormatConsole {
		loggerConfiguration.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		loggerConfiguration.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	return loggerConfiguration.Build()
}
