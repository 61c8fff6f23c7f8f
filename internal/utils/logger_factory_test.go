package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/centralpkg/cpmig/internal/utils"
)

func TestCreateLogger(t *testing.T) {
	testCases := []struct {
		name          string
		logLevel      utils.LogLevel
		logFormat     utils.LogFormat
		expectFailure bool
	}{
		{
			name:      "structured_info",
			logLevel:  utils.LogLevelInfo,
			logFormat: utils.LogFormatStructured,
		},
		{
			name:      "console_debug",
			logLevel:  utils.LogLevelDebug,
			logFormat: utils.LogFormatConsole,
		},
		{
			name:          "unsupported_level",
			logLevel:      utils.LogLevel("verbose"),
			logFormat:     utils.LogFormatStructured,
			expectFailure: true,
		},
		{
			name:          "unsupported_format",
			logLevel:      utils.LogLevelInfo,
			logFormat:     utils.LogFormat("plain"),
			expectFailure: true,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			logger, creationError := utils.NewLoggerFactory().CreateLogger(testCase.logLevel, testCase.logFormat)
			if testCase.expectFailure {
				require.Error(t, creationError)
				require.Nil(t, logger)
				return
			}

			require.NoError(t, creationError)
			require.NotNil(t, logger)
		})
	}
}
