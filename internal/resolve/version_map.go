package resolve

import "sort"

// VersionMap records every version requested for each package name across a
// scan. Keys are case sensitive; what projects literally declare is preserved.
type VersionMap struct {
	versions map[string]map[string]struct{}
}

// NewVersionMap constructs an empty version map.
func NewVersionMap() *VersionMap {
	return &VersionMap{versions: make(map[string]map[string]struct{})}
}

// Add records a requested version for the provided package name.
func (versionMap *VersionMap) Add(packageName string, version string) {
	if len(packageName) == 0 || len(version) == 0 {
		return
	}
	versionSet, exists := versionMap.versions[packageName]
	if !exists {
		versionSet = make(map[string]struct{})
		versionMap.versions[packageName] = versionSet
	}
	versionSet[version] = struct{}{}
}

// AddAll merges every entry of the other version map into this one.
func (versionMap *VersionMap) AddAll(other *VersionMap) {
	if other == nil {
		return
	}
	for packageName, versionSet := range other.versions {
		for version := range versionSet {
			versionMap.Add(packageName, version)
		}
	}
}

// Names returns every recorded package name in ascending order.
func (versionMap *VersionMap) Names() []string {
	names := make([]string, 0, len(versionMap.versions))
	for packageName := range versionMap.versions {
		names = append(names, packageName)
	}
	sort.Strings(names)
	return names
}

// Versions returns the recorded versions for the provided name in ascending order.
func (versionMap *VersionMap) Versions(packageName string) []string {
	versionSet, exists := versionMap.versions[packageName]
	if !exists {
		return nil
	}
	versions := make([]string, 0, len(versionSet))
	for version := range versionSet {
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions
}

// Len reports the number of distinct package names recorded.
func (versionMap *VersionMap) Len() int {
	return len(versionMap.versions)
}
