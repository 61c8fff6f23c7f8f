package resolve

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/centralpkg/cpmig/internal/semver"
)

const (
	unparseableVersionWarningConstant = "Version is not semantic; excluded from comparison"
	packageNameFieldConstant          = "package_name"
	versionFieldConstant              = "version"
)

// Strategy selects one version among divergent requests for the same package.
type Strategy string

// Supported conflict strategies.
const (
	StrategyHighest     Strategy = "highest"
	StrategyLowest      Strategy = "lowest"
	StrategyFail        Strategy = "fail"
	StrategyInteractive Strategy = "interactive"
)

// KnownStrategies lists every accepted strategy value for flag validation.
func KnownStrategies() []string {
	return []string{string(StrategyHighest), string(StrategyLowest), string(StrategyFail), string(StrategyInteractive)}
}

// Resolver detects version conflicts and resolves them under a strategy.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver constructs a Resolver logging through the provided logger.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// DetectConflicts returns the package names requested at more than one
// version, in ascending order with casing preserved.
func (resolver *Resolver) DetectConflicts(versionMap *VersionMap) []string {
	if versionMap == nil {
		return nil
	}
	var conflicted []string
	for _, packageName := range versionMap.Names() {
		if len(versionMap.Versions(packageName)) > 1 {
			conflicted = append(conflicted, packageName)
		}
	}
	return conflicted
}

// ResolveVersion picks one version from the candidates under the provided
// strategy. Candidates that fail semantic parsing are excluded from the
// comparison but reported; when every candidate fails, the first input is
// returned verbatim. A single candidate passes through unnormalized.
func (resolver *Resolver) ResolveVersion(versions []string, strategy Strategy) string {
	if len(versions) == 0 {
		return ""
	}
	if len(versions) == 1 {
		return versions[0]
	}

	parsedVersions := make([]semver.Version, 0, len(versions))
	for _, candidate := range versions {
		parsed, parseError := semver.Parse(candidate)
		if parseError != nil {
			resolver.logger.Warn(unparseableVersionWarningConstant, zap.String(versionFieldConstant, candidate))
			continue
		}
		parsedVersions = append(parsedVersions, parsed)
	}

	if len(parsedVersions) == 0 {
		return versions[0]
	}

	selected := parsedVersions[0]
	for _, candidate := range parsedVersions[1:] {
		comparison := semver.Compare(candidate, selected)
		if strategy == StrategyLowest {
			if comparison < 0 {
				selected = candidate
			}
			continue
		}
		// Highest is also the fallback for fail and interactive: callers
		// handling those strategies abort or decide before resolving.
		if comparison > 0 {
			selected = candidate
		}
	}

	return selected.Original
}

// CasingMismatch groups package names that differ only by letter casing.
type CasingMismatch struct {
	Casings []string
}

// DetectCasingMismatches finds names in the version map that collide when
// lowercased. The groups are reported for operators and never merged back
// into the case-sensitive map.
func (resolver *Resolver) DetectCasingMismatches(versionMap *VersionMap) []CasingMismatch {
	if versionMap == nil {
		return nil
	}

	lowercasedGroups := make(map[string][]string)
	for _, packageName := range versionMap.Names() {
		lowercased := strings.ToLower(packageName)
		lowercasedGroups[lowercased] = append(lowercasedGroups[lowercased], packageName)
	}

	groupKeys := make([]string, 0, len(lowercasedGroups))
	for groupKey, casings := range lowercasedGroups {
		if len(casings) > 1 {
			groupKeys = append(groupKeys, groupKey)
		}
	}
	sort.Strings(groupKeys)

	mismatches := make([]CasingMismatch, 0, len(groupKeys))
	for _, groupKey := range groupKeys {
		casings := lowercasedGroups[groupKey]
		sort.Strings(casings)
		mismatches = append(mismatches, CasingMismatch{Casings: casings})
	}
	return mismatches
}
