package project

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	solutionFileExtensionConstant      = ".sln"
	solutionProjectLinePrefixConstant  = "Project("
	solutionLineFieldSeparatorConstant = ","
	solutionPathQuoteConstant          = "\""
	windowsPathSeparatorConstant       = "\\"
	portablePathSeparatorConstant      = "/"
	solutionReadErrorTemplateConstant  = "unable to read solution file %s: %w"
	discoveryRootErrorTemplateConstant = "unable to inspect solution root %s: %w"
	discoveryWalkErrorTemplateConstant = "unable to walk solution root %s: %w"
)

// defaultSkippedDirectoryNames bounds project discovery beneath a root.
var defaultSkippedDirectoryNames = map[string]struct{}{
	"bin":            {},
	"obj":            {},
	".git":           {},
	".vs":            {},
	"node_modules":   {},
	".cpmig-backups": {},
}

// Discoverer locates project files for a solution root.
type Discoverer struct {
	skippedDirectoryNames map[string]struct{}
}

// NewDiscoverer constructs a project discoverer backed by filepath.WalkDir.
// Extra names extend the default skip set; callers pass the configured
// backup directory name so its contents never register as projects.
func NewDiscoverer(extraSkippedDirectoryNames ...string) *Discoverer {
	skippedDirectoryNames := make(map[string]struct{}, len(defaultSkippedDirectoryNames)+len(extraSkippedDirectoryNames))
	for directoryName := range defaultSkippedDirectoryNames {
		skippedDirectoryNames[directoryName] = struct{}{}
	}
	for _, directoryName := range extraSkippedDirectoryNames {
		trimmedName := strings.TrimSpace(directoryName)
		if len(trimmedName) > 0 {
			skippedDirectoryNames[trimmedName] = struct{}{}
		}
	}
	return &Discoverer{skippedDirectoryNames: skippedDirectoryNames}
}

// DiscoverFromSolutionRoot resolves the provided path to a base directory and
// the project files it governs. A .sln file contributes the projects it
// references; a directory is walked for csproj files with build output and
// metadata directories skipped. Results are sorted.
func (discoverer *Discoverer) DiscoverFromSolutionRoot(rootPath string) (string, []string, error) {
	rootInfo, statError := os.Stat(rootPath)
	if statError != nil {
		return "", nil, fmt.Errorf(discoveryRootErrorTemplateConstant, rootPath, statError)
	}

	if !rootInfo.IsDir() && strings.EqualFold(filepath.Ext(rootPath), solutionFileExtensionConstant) {
		projectPaths, parseError := parseSolutionProjects(rootPath)
		if parseError != nil {
			return "", nil, parseError
		}
		return filepath.Dir(rootPath), projectPaths, nil
	}

	var projectPaths []string
	walkError := filepath.WalkDir(rootPath, func(path string, directoryEntry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return nil
		}
		if directoryEntry.IsDir() {
			if _, skipped := discoverer.skippedDirectoryNames[directoryEntry.Name()]; skipped {
				return fs.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), projectFileExtensionConstant) {
			projectPaths = append(projectPaths, path)
		}
		return nil
	})
	if walkError != nil {
		return "", nil, fmt.Errorf(discoveryWalkErrorTemplateConstant, rootPath, walkError)
	}

	sort.Strings(projectPaths)
	return rootPath, projectPaths, nil
}

// parseSolutionProjects extracts csproj paths referenced by Project lines of a
// solution file, resolved against the solution directory.
func parseSolutionProjects(solutionPath string) ([]string, error) {
	solutionData, readError := os.ReadFile(solutionPath)
	if readError != nil {
		return nil, fmt.Errorf(solutionReadErrorTemplateConstant, solutionPath, readError)
	}

	solutionDirectory := filepath.Dir(solutionPath)
	var projectPaths []string

	for _, line := range strings.Split(string(solutionData), "\n") {
		trimmedLine := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmedLine, solutionProjectLinePrefixConstant) {
			continue
		}

		lineFields := strings.Split(trimmedLine, solutionLineFieldSeparatorConstant)
		if len(lineFields) < 2 {
			continue
		}

		relativePath := strings.Trim(strings.TrimSpace(lineFields[1]), solutionPathQuoteConstant)
		if !strings.EqualFold(filepath.Ext(relativePath), projectFileExtensionConstant) {
			continue
		}

		portablePath := strings.ReplaceAll(relativePath, windowsPathSeparatorConstant, portablePathSeparatorConstant)
		projectPaths = append(projectPaths, filepath.Join(solutionDirectory, filepath.FromSlash(portablePath)))
	}

	sort.Strings(projectPaths)
	return projectPaths, nil
}
