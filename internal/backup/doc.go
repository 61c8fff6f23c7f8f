// Package backup creates and restores per-file timestamped backups plus the
// JSON manifest that ties a migration run to its backup set. Rollback is
// transactional: every entry is restored before any deletion decision, and a
// partially failed restore always leaves the manifest and backups on disk.
package backup
