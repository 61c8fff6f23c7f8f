// Package props renders, reads, and merges Directory.Packages.props central
// package manifests.
package props

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	manifestFileNameConstant           = "Directory.Packages.props"
	manifestHeaderConstant             = "<Project>"
	manifestFooterConstant             = "</Project>"
	propertyGroupBlockConstant         = "  <PropertyGroup>\n    <ManagePackageVersionsCentrally>true</ManagePackageVersionsCentrally>\n  </PropertyGroup>"
	itemGroupOpenConstant              = "  <ItemGroup>"
	itemGroupCloseConstant             = "  </ItemGroup>"
	packageVersionEntryTemplate        = `    <PackageVersion Include="%s" Version="%s" />`
	manifestParseErrorTemplateConstant = "unable to parse central manifest %s: %w"
	conditionalItemGroupPattern        = `(?s)[ \t]*<ItemGroup\s+Condition=[^>]*>.*?</ItemGroup>`
)

// ManifestFileName is the canonical central manifest file name.
const ManifestFileName = manifestFileNameConstant

var conditionalItemGroupExpression = regexp.MustCompile(conditionalItemGroupPattern)

type packageVersionElement struct {
	Include string `xml:"Include,attr"`
	Version string `xml:"Version,attr"`
}

type manifestItemGroupElement struct {
	Condition       string                  `xml:"Condition,attr"`
	PackageVersions []packageVersionElement `xml:"PackageVersion"`
}

type manifestDocument struct {
	ItemGroups []manifestItemGroupElement `xml:"ItemGroup"`
}

// RenderManifest produces a deterministic central manifest text pinning every
// package of the resolved map, sorted case-insensitively by name.
func RenderManifest(resolvedVersions map[string]string) string {
	return renderManifest(sortedPackageNames(resolvedVersions), resolvedVersions, nil)
}

func sortedPackageNames(versions map[string]string) []string {
	packageNames := make([]string, 0, len(versions))
	for packageName := range versions {
		packageNames = append(packageNames, packageName)
	}
	sort.Slice(packageNames, func(firstIndex, secondIndex int) bool {
		firstLower := strings.ToLower(packageNames[firstIndex])
		secondLower := strings.ToLower(packageNames[secondIndex])
		if firstLower == secondLower {
			return packageNames[firstIndex] < packageNames[secondIndex]
		}
		return firstLower < secondLower
	})
	return packageNames
}

func renderManifest(orderedPackageNames []string, versions map[string]string, conditionalBlocks []string) string {
	var builder strings.Builder
	builder.WriteString(manifestHeaderConstant + "\n")
	builder.WriteString(propertyGroupBlockConstant + "\n")
	builder.WriteString(itemGroupOpenConstant + "\n")
	for _, packageName := range orderedPackageNames {
		builder.WriteString(fmt.Sprintf(packageVersionEntryTemplate, packageName, versions[packageName]) + "\n")
	}
	builder.WriteString(itemGroupCloseConstant + "\n")
	for _, conditionalBlock := range conditionalBlocks {
		builder.WriteString("  " + strings.TrimSpace(conditionalBlock) + "\n")
	}
	builder.WriteString(manifestFooterConstant + "\n")
	return builder.String()
}

// parseUnconditionalEntries returns the manifest's unconditional pins in
// document order, deduplicated on first occurrence. The boolean reports
// whether conditional item groups were present.
func parseUnconditionalEntries(manifestPath string, manifestData []byte) ([]packageVersionElement, bool, error) {
	var document manifestDocument
	if unmarshalError := xml.Unmarshal(manifestData, &document); unmarshalError != nil {
		return nil, false, fmt.Errorf(manifestParseErrorTemplateConstant, manifestPath, unmarshalError)
	}

	var orderedEntries []packageVersionElement
	seenNames := make(map[string]bool)
	hadConditionalEntries := false
	for _, itemGroup := range document.ItemGroups {
		if len(strings.TrimSpace(itemGroup.Condition)) > 0 {
			hadConditionalEntries = true
			continue
		}
		for _, packageVersion := range itemGroup.PackageVersions {
			if len(packageVersion.Include) == 0 || seenNames[packageVersion.Include] {
				continue
			}
			seenNames[packageVersion.Include] = true
			orderedEntries = append(orderedEntries, packageVersion)
		}
	}

	return orderedEntries, hadConditionalEntries, nil
}

// ReadExistingVersions parses a central manifest into its unconditional pins.
// The boolean reports whether conditional item groups were present; their
// entries are excluded from the returned map.
func ReadExistingVersions(manifestPath string, manifestData []byte) (map[string]string, bool, error) {
	orderedEntries, hadConditionalEntries, parseError := parseUnconditionalEntries(manifestPath, manifestData)
	if parseError != nil {
		return nil, false, parseError
	}

	existingVersions := make(map[string]string, len(orderedEntries))
	for _, entry := range orderedEntries {
		existingVersions[entry.Include] = entry.Version
	}

	return existingVersions, hadConditionalEntries, nil
}

// MergeResult summarizes a merge into an existing central manifest.
type MergeResult struct {
	MergedText            string
	AddedCount            int
	UpdatedCount          int
	HadConditionalEntries bool
}

// MergeIntoExisting unions the resolved versions into an existing manifest
// text. Resolved versions win over existing pins, existing pins keep their
// document position, new packages are appended sorted, and conditional item
// groups are preserved verbatim and flagged.
func MergeIntoExisting(manifestPath string, manifestData []byte, resolvedVersions map[string]string) (MergeResult, error) {
	orderedEntries, hadConditionalEntries, parseError := parseUnconditionalEntries(manifestPath, manifestData)
	if parseError != nil {
		return MergeResult{}, parseError
	}

	mergedVersions := make(map[string]string, len(orderedEntries)+len(resolvedVersions))
	orderedNames := make([]string, 0, len(orderedEntries)+len(resolvedVersions))
	for _, entry := range orderedEntries {
		mergedVersions[entry.Include] = entry.Version
		orderedNames = append(orderedNames, entry.Include)
	}

	addedCount := 0
	updatedCount := 0
	newVersions := make(map[string]string)
	for packageName, version := range resolvedVersions {
		existingVersion, exists := mergedVersions[packageName]
		if !exists {
			addedCount++
			newVersions[packageName] = version
			continue
		}
		if existingVersion != version {
			updatedCount++
		}
		mergedVersions[packageName] = version
	}

	for packageName, version := range newVersions {
		mergedVersions[packageName] = version
	}
	orderedNames = append(orderedNames, sortedPackageNames(newVersions)...)

	conditionalBlocks := conditionalItemGroupExpression.FindAllString(string(manifestData), -1)

	return MergeResult{
		MergedText:            renderManifest(orderedNames, mergedVersions, conditionalBlocks),
		AddedCount:            addedCount,
		UpdatedCount:          updatedCount,
		HadConditionalEntries: hadConditionalEntries,
	}, nil
}
