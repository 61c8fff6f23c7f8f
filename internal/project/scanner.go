package project

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/centralpkg/cpmig/internal/shared"
)

const (
	projectFileExtensionConstant        = ".csproj"
	projectScanFailedWarningConstant    = "Project file could not be parsed; skipping"
	projectPathFieldConstant            = "project_path"
	projectReadErrorTemplateConstant    = "unable to read project file %s: %w"
	versionElementPatternConstant       = `(?s)(<PackageReference\b[^>]*Include="(?:%s)"[^>]*>)\s*<Version>[^<]*</Version>\s*(</PackageReference>)`
	versionAfterIncludePatternConstant  = `(<PackageReference\b[^>]*Include="(?:%s)"[^>]*?)\s+Version="[^"]*"`
	versionBeforeIncludePatternConstant = `(<PackageReference\b[^>]*?)\s+Version="[^"]*"([^>]*\bInclude="(?:%s)")`
	collapsedElementReplacementFormat   = "$1$2"
	strippedAttributeReplacementValue   = "$1"
	joinedAttributeReplacementValue     = "$1$2"
	selfClosingElementSuffixConstant    = " />"
)

// PackageReference is one package declaration observed in a project file.
type PackageReference struct {
	PackageName  string
	Version      string
	ProjectPath  string
	ProjectName  string
	IsTransitive bool
}

type packageReferenceElement struct {
	Include          string `xml:"Include,attr"`
	VersionAttribute string `xml:"Version,attr"`
	VersionElement   string `xml:"Version"`
}

type itemGroupElement struct {
	PackageReferences []packageReferenceElement `xml:"PackageReference"`
}

type projectDocument struct {
	ItemGroups []itemGroupElement `xml:"ItemGroup"`
}

// Scanner reads package references out of csproj files and rewrites them for
// central version management.
type Scanner struct {
	logger     *zap.Logger
	fileSystem shared.FileSystem
}

// NewScanner constructs a Scanner reading through the provided filesystem.
func NewScanner(logger *zap.Logger, fileSystem shared.FileSystem) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{logger: logger, fileSystem: fileSystem}
}

// ScanProject parses the project file and returns its package references.
// The boolean reports whether the file was parseable; scan failures are
// non-fatal and logged.
func (scanner *Scanner) ScanProject(projectPath string) ([]PackageReference, bool) {
	projectData, readError := scanner.fileSystem.ReadFile(projectPath)
	if readError != nil {
		scanner.logger.Warn(projectScanFailedWarningConstant, zap.String(projectPathFieldConstant, projectPath), zap.Error(readError))
		return nil, false
	}

	var document projectDocument
	if unmarshalError := xml.Unmarshal(projectData, &document); unmarshalError != nil {
		scanner.logger.Warn(projectScanFailedWarningConstant, zap.String(projectPathFieldConstant, projectPath), zap.Error(unmarshalError))
		return nil, false
	}

	projectName := strings.TrimSuffix(filepath.Base(projectPath), projectFileExtensionConstant)

	var references []PackageReference
	for _, itemGroup := range document.ItemGroups {
		for _, referenceElement := range itemGroup.PackageReferences {
			if len(referenceElement.Include) == 0 {
				continue
			}
			version := referenceElement.VersionAttribute
			if len(version) == 0 {
				version = strings.TrimSpace(referenceElement.VersionElement)
			}
			references = append(references, PackageReference{
				PackageName: referenceElement.Include,
				Version:     version,
				ProjectPath: projectPath,
				ProjectName: projectName,
			})
		}
	}

	return references, true
}

// TransformProject rewrites the project file text so packages present in the
// centrally pinned set no longer carry per-project versions. The rewrite is
// positional so untouched parts of the document keep their formatting. The
// boolean reports whether the text changed.
func (scanner *Scanner) TransformProject(projectPath string, pinnedPackageNames []string, keepVersionAttribute bool) (string, bool, error) {
	projectData, readError := scanner.fileSystem.ReadFile(projectPath)
	if readError != nil {
		return "", false, fmt.Errorf(projectReadErrorTemplateConstant, projectPath, readError)
	}

	originalText := string(projectData)
	if keepVersionAttribute || len(pinnedPackageNames) == 0 {
		return originalText, false, nil
	}

	quotedNames := make([]string, 0, len(pinnedPackageNames))
	for _, packageName := range pinnedPackageNames {
		quotedNames = append(quotedNames, regexp.QuoteMeta(packageName))
	}
	nameAlternation := strings.Join(quotedNames, "|")

	transformedText := originalText

	versionElementPattern := regexp.MustCompile(fmt.Sprintf(versionElementPatternConstant, nameAlternation))
	transformedText = versionElementPattern.ReplaceAllStringFunc(transformedText, func(match string) string {
		collapsed := versionElementPattern.ReplaceAllString(match, collapsedElementReplacementFormat)
		return collapseEmptyReference(collapsed)
	})

	// The Version attribute may sit on either side of Include; both orders
	// are valid MSBuild and both must lose the attribute.
	versionAfterIncludePattern := regexp.MustCompile(fmt.Sprintf(versionAfterIncludePatternConstant, nameAlternation))
	transformedText = versionAfterIncludePattern.ReplaceAllString(transformedText, strippedAttributeReplacementValue)

	versionBeforeIncludePattern := regexp.MustCompile(fmt.Sprintf(versionBeforeIncludePatternConstant, nameAlternation))
	transformedText = versionBeforeIncludePattern.ReplaceAllString(transformedText, joinedAttributeReplacementValue)

	return transformedText, transformedText != originalText, nil
}

// collapseEmptyReference rewrites `<PackageReference ...></PackageReference>`
// pairs left behind by version element removal into self-closing form.
func collapseEmptyReference(referenceText string) string {
	openingEnd := strings.Index(referenceText, ">")
	if openingEnd < 0 || !strings.HasSuffix(referenceText, "</PackageReference>") {
		return referenceText
	}
	opening := referenceText[:openingEnd]
	if strings.HasSuffix(opening, "/") {
		return referenceText
	}
	return strings.TrimRight(opening, " ") + selfClosingElementSuffixConstant
}
