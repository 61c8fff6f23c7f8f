package batch

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	solutionFileExtensionConstant = ".sln"
	projectFileExtensionConstant  = ".csproj"
)

var skippedDirectoryNames = map[string]struct{}{
	"bin":          {},
	"obj":          {},
	".git":         {},
	".vs":          {},
	"node_modules": {},
}

// FilesystemUnitDiscoverer locates migration unit roots on disk. A unit root
// is the shallowest directory directly containing a solution or project file;
// the walk never descends past one, so nested projects belong to the unit
// that contains them.
type FilesystemUnitDiscoverer struct{}

// NewFilesystemUnitDiscoverer constructs a unit discoverer backed by filepath.WalkDir.
func NewFilesystemUnitDiscoverer() *FilesystemUnitDiscoverer {
	return &FilesystemUnitDiscoverer{}
}

// DiscoverUnits walks the parent directory and returns unit roots in sorted
// order. Directory names listed in excludedDirectoryNames are not entered.
func (discoverer *FilesystemUnitDiscoverer) DiscoverUnits(parentDirectory string, excludedDirectoryNames []string) ([]string, error) {
	excludedNames := make(map[string]struct{}, len(excludedDirectoryNames))
	for _, excludedName := range excludedDirectoryNames {
		trimmedName := strings.TrimSpace(excludedName)
		if len(trimmedName) > 0 {
			excludedNames[trimmedName] = struct{}{}
		}
	}

	var unitRoots []string
	walkError := filepath.WalkDir(parentDirectory, func(path string, directoryEntry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return nil
		}
		if !directoryEntry.IsDir() {
			return nil
		}

		directoryName := directoryEntry.Name()
		if path != parentDirectory {
			if _, skipped := skippedDirectoryNames[directoryName]; skipped {
				return fs.SkipDir
			}
			if _, excluded := excludedNames[directoryName]; excluded {
				return fs.SkipDir
			}
			if strings.HasPrefix(directoryName, ".") {
				return fs.SkipDir
			}
		}

		containsUnit, probeError := directoryContainsUnitMarker(path)
		if probeError != nil {
			return nil
		}
		if containsUnit {
			unitRoots = append(unitRoots, path)
			return fs.SkipDir
		}
		return nil
	})
	if walkError != nil {
		return nil, walkError
	}

	sort.Strings(unitRoots)
	return unitRoots, nil
}

func directoryContainsUnitMarker(directoryPath string) (bool, error) {
	directoryEntries, readError := os.ReadDir(directoryPath)
	if readError != nil {
		return false, readError
	}
	for _, directoryEntry := range directoryEntries {
		if directoryEntry.IsDir() {
			continue
		}
		extension := strings.ToLower(filepath.Ext(directoryEntry.Name()))
		if extension == solutionFileExtensionConstant || extension == projectFileExtensionConstant {
			return true, nil
		}
	}
	return false, nil
}
