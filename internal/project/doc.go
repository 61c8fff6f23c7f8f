// Package project parses csproj package references, rewrites project files
// for centrally managed versions, and discovers project files beneath a
// solution root.
package project
