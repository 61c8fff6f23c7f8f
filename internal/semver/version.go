// Package semver parses and orders package versions of the form
// major.minor.patch[.revision][-prerelease][+build] as produced by NuGet
// package references. Ordering delegates to golang.org/x/mod/semver over a
// canonical rendering, with the legacy fourth revision part as a tie break.
package semver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	xsemver "golang.org/x/mod/semver"
)

const (
	buildMetadataSeparatorConstant     = "+"
	prereleaseSeparatorConstant        = "-"
	versionPartSeparatorConstant       = "."
	canonicalVersionPrefixConstant     = "v"
	maximumNumericPartCountConstant    = 4
	emptyVersionMessageConstant        = "version string is empty"
	invalidVersionTemplateConstant     = "version %q is not a semantic version"
	invalidNumericPartTemplateConstant = "version %q has non-numeric part %q"
)

// Version holds a parsed package version alongside its original rendering.
type Version struct {
	Original   string
	Major      int
	Minor      int
	Patch      int
	Revision   int
	Prerelease string
	Build      string
}

// Parse interprets raw as a package version. Missing minor and patch parts
// default to zero; wildcard and floating forms fail to parse.
func Parse(raw string) (Version, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Version{}, errors.New(emptyVersionMessageConstant)
	}

	remainder := trimmed
	parsed := Version{Original: trimmed}

	if separatorIndex := strings.Index(remainder, buildMetadataSeparatorConstant); separatorIndex >= 0 {
		parsed.Build = remainder[separatorIndex+1:]
		remainder = remainder[:separatorIndex]
	}

	if separatorIndex := strings.Index(remainder, prereleaseSeparatorConstant); separatorIndex >= 0 {
		parsed.Prerelease = remainder[separatorIndex+1:]
		remainder = remainder[:separatorIndex]
		if len(parsed.Prerelease) == 0 {
			return Version{}, fmt.Errorf(invalidVersionTemplateConstant, trimmed)
		}
	}

	numericParts := strings.Split(remainder, versionPartSeparatorConstant)
	if len(numericParts) == 0 || len(numericParts) > maximumNumericPartCountConstant {
		return Version{}, fmt.Errorf(invalidVersionTemplateConstant, trimmed)
	}

	parsedParts := make([]int, 0, maximumNumericPartCountConstant)
	for _, numericPart := range numericParts {
		partValue, conversionError := strconv.Atoi(numericPart)
		if conversionError != nil || partValue < 0 {
			return Version{}, fmt.Errorf(invalidNumericPartTemplateConstant, trimmed, numericPart)
		}
		parsedParts = append(parsedParts, partValue)
	}

	parsed.Major = parsedParts[0]
	if len(parsedParts) > 1 {
		parsed.Minor = parsedParts[1]
	}
	if len(parsedParts) > 2 {
		parsed.Patch = parsedParts[2]
	}
	if len(parsedParts) > 3 {
		parsed.Revision = parsedParts[3]
	}

	return parsed, nil
}

// Canonical renders the version in the v-prefixed form understood by
// golang.org/x/mod/semver. The revision part is omitted and compared separately.
func (version Version) Canonical() string {
	canonical := fmt.Sprintf("%s%d.%d.%d", canonicalVersionPrefixConstant, version.Major, version.Minor, version.Patch)
	if len(version.Prerelease) > 0 {
		canonical += prereleaseSeparatorConstant + version.Prerelease
	}
	return canonical
}

// Compare orders two versions, returning -1, 0, or +1. Numeric parts dominate
// prerelease tags; the revision part breaks ties between otherwise equal versions.
func Compare(first Version, second Version) int {
	comparison := xsemver.Compare(first.Canonical(), second.Canonical())
	if comparison != 0 {
		return comparison
	}
	switch {
	case first.Revision < second.Revision:
		return -1
	case first.Revision > second.Revision:
		return 1
	default:
		return 0
	}
}
