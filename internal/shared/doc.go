// Package shared defines the collaborator abstractions used across cpmig
// services: clocks, filesystem access, confirmation prompting, and the
// reporting surface that keeps rendering concerns out of core logic.
package shared
