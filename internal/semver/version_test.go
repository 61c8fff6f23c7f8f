package semver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/centralpkg/cpmig/internal/semver"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		input       string
		expected    semver.Version
		expectError bool
	}{
		{name: "full_version", input: "1.2.3", expected: semver.Version{Original: "1.2.3", Major: 1, Minor: 2, Patch: 3}},
		{name: "defaults_missing_parts", input: "2", expected: semver.Version{Original: "2", Major: 2}},
		{name: "legacy_revision", input: "4.5.6.7", expected: semver.Version{Original: "4.5.6.7", Major: 4, Minor: 5, Patch: 6, Revision: 7}},
		{name: "prerelease", input: "2.0.0-beta.1", expected: semver.Version{Original: "2.0.0-beta.1", Major: 2, Prerelease: "beta.1"}},
		{name: "build_metadata", input: "1.0.0+sha.abc", expected: semver.Version{Original: "1.0.0+sha.abc", Major: 1, Build: "sha.abc"}},
		{name: "trims_whitespace", input: " 3.1.0 ", expected: semver.Version{Original: "3.1.0", Major: 3, Minor: 1}},
		{name: "rejects_empty", input: "", expectError: true},
		{name: "rejects_wildcard", input: "1.*", expectError: true},
		{name: "rejects_floating", input: "[1.0,2.0)", expectError: true},
		{name: "rejects_trailing_dash", input: "1.0.0-", expectError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			parsed, parseError := semver.Parse(testCase.input)
			if testCase.expectError {
				require.Error(t, parseError)
				return
			}
			require.NoError(t, parseError)
			require.Equal(t, testCase.expected, parsed)
		})
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		first    string
		second   string
		expected int
	}{
		{name: "major_dominates_prerelease", first: "2.0.0-beta", second: "1.5.0-alpha", expected: 1},
		{name: "release_above_prerelease", first: "1.0.0", second: "1.0.0-rc.1", expected: 1},
		{name: "equal_versions", first: "1.2.3", second: "1.2.3", expected: 0},
		{name: "revision_breaks_tie", first: "1.2.3.4", second: "1.2.3.2", expected: 1},
		{name: "patch_ordering", first: "1.2.3", second: "1.2.10", expected: -1},
		{name: "build_metadata_ignored", first: "1.0.0+one", second: "1.0.0+two", expected: 0},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			firstVersion, firstError := semver.Parse(testCase.first)
			require.NoError(t, firstError)
			secondVersion, secondError := semver.Parse(testCase.second)
			require.NoError(t, secondError)
			require.Equal(t, testCase.expected, semver.Compare(firstVersion, secondVersion))
		})
	}
}
