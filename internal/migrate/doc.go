// Package migrate implements the central package management migration
// workflow: project discovery, backup, per-project rewrite, conflict
// resolution, central manifest generation, and rollback from a run's own
// backup set.
//
// It exposes CommandBuilder values for wiring the Cobra commands, Service for
// driving the workflow programmatically, and supporting abstractions for
// scanning, graph analysis, and prompting collaborators.
package migrate
