// Package graph reads per-project dependency lock graphs and flags direct
// package references that are already satisfied transitively through another
// direct reference.
package graph

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/centralpkg/cpmig/internal/shared"
)

const (
	assetsFileRelativePathConstant   = "obj/project.assets.json"
	nodeKeySeparatorConstant         = "@"
	packageEntrySeparatorConstant    = "/"
	lockGraphMissingWarningConstant  = "Lock graph unavailable; skipping transitive analysis for project"
	projectPathFieldConstant         = "project_path"
	assetsParseErrorTemplateConstant = "unable to parse lock graph %s: %w"
	assetsReadErrorTemplateConstant  = "unable to read lock graph %s: %w"
	packageEntryTypeConstant         = "package"
)

// Node represents one name@version entry of a lock graph together with the
// names of its direct dependencies.
type Node struct {
	Name         string
	Version      string
	Dependencies []string
}

// LockGraph is the resolved dependency graph of a single project. Lookups are
// case insensitive; NuGet package identities ignore casing.
type LockGraph struct {
	nodesByKey     map[string]Node
	versionsByName map[string]string
}

// Resolve returns the node for the provided package name, if present.
func (lockGraph *LockGraph) Resolve(packageName string) (Node, bool) {
	version, exists := lockGraph.versionsByName[strings.ToLower(packageName)]
	if !exists {
		return Node{}, false
	}
	node, nodeExists := lockGraph.nodesByKey[nodeKey(packageName, version)]
	return node, nodeExists
}

// NodeCount reports the number of resolved packages in the graph.
func (lockGraph *LockGraph) NodeCount() int {
	return len(lockGraph.nodesByKey)
}

func nodeKey(packageName string, version string) string {
	return strings.ToLower(packageName) + nodeKeySeparatorConstant + version
}

// Service loads lock graphs and computes redundant direct references.
type Service struct {
	logger     *zap.Logger
	fileSystem shared.FileSystem
}

// NewService constructs a graph service reading through the provided filesystem.
func NewService(logger *zap.Logger, fileSystem shared.FileSystem) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger, fileSystem: fileSystem}
}

type assetsTargetEntry struct {
	Type         string            `json:"type"`
	Dependencies map[string]string `json:"dependencies"`
}

type assetsDocument struct {
	Targets map[string]map[string]assetsTargetEntry `json:"targets"`
}

// LoadLockGraph reads the project.assets.json beneath the project directory
// and converts it into a LockGraph spanning every target framework.
func (service *Service) LoadLockGraph(projectPath string) (*LockGraph, error) {
	assetsPath := filepath.Join(filepath.Dir(projectPath), filepath.FromSlash(assetsFileRelativePathConstant))

	assetsData, readError := service.fileSystem.ReadFile(assetsPath)
	if readError != nil {
		return nil, fmt.Errorf(assetsReadErrorTemplateConstant, assetsPath, readError)
	}

	var document assetsDocument
	if unmarshalError := json.Unmarshal(assetsData, &document); unmarshalError != nil {
		return nil, fmt.Errorf(assetsParseErrorTemplateConstant, assetsPath, unmarshalError)
	}

	lockGraph := &LockGraph{
		nodesByKey:     make(map[string]Node),
		versionsByName: make(map[string]string),
	}

	for _, targetEntries := range document.Targets {
		for packageEntry, entryDetails := range targetEntries {
			if len(entryDetails.Type) > 0 && entryDetails.Type != packageEntryTypeConstant {
				continue
			}

			separatorIndex := strings.Index(packageEntry, packageEntrySeparatorConstant)
			if separatorIndex <= 0 || separatorIndex == len(packageEntry)-1 {
				continue
			}
			packageName := packageEntry[:separatorIndex]
			packageVersion := packageEntry[separatorIndex+1:]

			dependencyNames := make([]string, 0, len(entryDetails.Dependencies))
			for dependencyName := range entryDetails.Dependencies {
				dependencyNames = append(dependencyNames, dependencyName)
			}
			sort.Strings(dependencyNames)

			lockGraph.nodesByKey[nodeKey(packageName, packageVersion)] = Node{
				Name:         packageName,
				Version:      packageVersion,
				Dependencies: dependencyNames,
			}
			lockGraph.versionsByName[strings.ToLower(packageName)] = packageVersion
		}
	}

	return lockGraph, nil
}

// IdentifyRedundantDirectReferences reports which of the provided direct
// dependency names are already reachable through another direct dependency.
// A missing or malformed lock graph degrades to an empty result for this
// project only.
func (service *Service) IdentifyRedundantDirectReferences(projectPath string, directDependencyNames []string) []string {
	lockGraph, loadError := service.LoadLockGraph(projectPath)
	if loadError != nil {
		service.logger.Warn(lockGraphMissingWarningConstant, zap.String(projectPathFieldConstant, projectPath), zap.Error(loadError))
		return nil
	}
	return service.identifyRedundant(lockGraph, directDependencyNames)
}

func (service *Service) identifyRedundant(lockGraph *LockGraph, directDependencyNames []string) []string {
	uniqueDirects := dedupeCaseInsensitive(directDependencyNames)

	closures := make(map[string]map[string]struct{}, len(uniqueDirects))
	for _, directName := range uniqueDirects {
		closures[strings.ToLower(directName)] = service.transitiveClosure(lockGraph, directName)
	}

	var redundantNames []string
	for _, directName := range uniqueDirects {
		lowercasedDirect := strings.ToLower(directName)
		for _, otherName := range uniqueDirects {
			lowercasedOther := strings.ToLower(otherName)
			if lowercasedOther == lowercasedDirect {
				continue
			}
			if _, reachable := closures[lowercasedOther][lowercasedDirect]; reachable {
				redundantNames = append(redundantNames, directName)
				break
			}
		}
	}

	sort.Strings(redundantNames)
	return redundantNames
}

// transitiveClosure walks outward from the named package using an explicit
// worklist, guarded by a visited set keyed name@version so cyclic or
// malformed graphs terminate.
func (service *Service) transitiveClosure(lockGraph *LockGraph, startName string) map[string]struct{} {
	reachedNames := make(map[string]struct{})

	startNode, startExists := lockGraph.Resolve(startName)
	if !startExists {
		return reachedNames
	}

	visitedKeys := map[string]struct{}{nodeKey(startNode.Name, startNode.Version): {}}
	worklist := append([]string{}, startNode.Dependencies...)

	for len(worklist) > 0 {
		currentName := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		reachedNames[strings.ToLower(currentName)] = struct{}{}

		currentNode, currentExists := lockGraph.Resolve(currentName)
		if !currentExists {
			continue
		}

		currentKey := nodeKey(currentNode.Name, currentNode.Version)
		if _, alreadyVisited := visitedKeys[currentKey]; alreadyVisited {
			continue
		}
		visitedKeys[currentKey] = struct{}{}

		worklist = append(worklist, currentNode.Dependencies...)
	}

	return reachedNames
}

func dedupeCaseInsensitive(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	deduped := make([]string, 0, len(names))
	for _, name := range names {
		lowercased := strings.ToLower(name)
		if _, exists := seen[lowercased]; exists {
			continue
		}
		seen[lowercased] = struct{}{}
		deduped = append(deduped, name)
	}
	return deduped
}
