package backup_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/centralpkg/cpmig/internal/backup"
	"github.com/centralpkg/cpmig/internal/shared"
)

func newManager(t *testing.T, backupsEnabled bool) *backup.Manager {
	t.Helper()

	return backup.NewManager(zap.NewNop(), shared.NewOSFileSystem(), backupsEnabled)
}

func writeWorkFile(t *testing.T, directory string, fileName string, content string) string {
	t.Helper()

	filePath := filepath.Join(directory, fileName)
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	return filePath
}

func TestCreateBackupDirectory(t *testing.T) {
	t.Parallel()

	t.Run("creates_and_is_idempotent", func(t *testing.T) {
		t.Parallel()

		manager := newManager(t, true)
		backupDirectory := filepath.Join(t.TempDir(), ".cpmig-backups")

		createdPath, createError := manager.CreateBackupDirectory(backupDirectory)
		require.NoError(t, createError)
		require.Equal(t, backupDirectory, createdPath)
		require.DirExists(t, backupDirectory)

		createdAgain, repeatError := manager.CreateBackupDirectory(backupDirectory)
		require.NoError(t, repeatError)
		require.Equal(t, backupDirectory, createdAgain)
	})

	t.Run("noop_when_disabled", func(t *testing.T) {
		t.Parallel()

		manager := newManager(t, false)
		backupDirectory := filepath.Join(t.TempDir(), ".cpmig-backups")

		createdPath, createError := manager.CreateBackupDirectory(backupDirectory)
		require.NoError(t, createError)
		require.Empty(t, createdPath)
		require.NoDirExists(t, backupDirectory)
	})
}

func TestCreateBackupForProject(t *testing.T) {
	t.Parallel()

	manager := newManager(t, true)
	workDirectory := t.TempDir()
	backupDirectory := filepath.Join(workDirectory, ".cpmig-backups")
	require.NoError(t, os.MkdirAll(backupDirectory, 0o755))

	timestamp := backup.FormatTimestamp(time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC))
	projectPath := writeWorkFile(t, workDirectory, "App.csproj", "<Project />")

	entry, backupError := manager.CreateBackupForProject(projectPath, backupDirectory, timestamp)
	require.NoError(t, backupError)
	require.Equal(t, projectPath, entry.OriginalPath)
	require.Equal(t, "App.csproj.backup_20250314T092653.589", entry.BackupFileName)

	backedUp, readError := os.ReadFile(filepath.Join(backupDirectory, entry.BackupFileName))
	require.NoError(t, readError)
	require.Equal(t, "<Project />", string(backedUp))

	// Same base name in the same run stays unique.
	otherProjectPath := writeWorkFile(t, filepath.Join(workDirectory, "other"), "App.csproj", "<Project Sdk=\"x\" />")
	otherEntry, otherError := manager.CreateBackupForProject(otherProjectPath, backupDirectory, timestamp)
	require.NoError(t, otherError)
	require.NotEqual(t, entry.BackupFileName, otherEntry.BackupFileName)
}

func TestManifestRoundTrip(t *testing.T) {
	t.Parallel()

	manager := newManager(t, true)
	backupDirectory := t.TempDir()

	manifest := backup.BackupManifest{
		Timestamp:        "20250314T092653.589",
		PropsFilePath:    filepath.Join(backupDirectory, "Directory.Packages.props"),
		PropsFileExisted: true,
		Backups: []backup.BackupEntry{
			{OriginalPath: "/tmp/App.csproj", BackupFileName: "App.csproj.backup_20250314T092653.589"},
		},
	}

	require.NoError(t, manager.WriteManifest(backupDirectory, manifest))

	loaded, found := manager.ReadManifest(backupDirectory)
	require.True(t, found)
	require.Equal(t, manifest, loaded)
}

func TestReadManifestAbsentAndMalformed(t *testing.T) {
	t.Parallel()

	manager := newManager(t, true)

	t.Run("absent", func(t *testing.T) {
		t.Parallel()

		_, found := manager.ReadManifest(t.TempDir())
		require.False(t, found)
	})

	t.Run("malformed_treated_as_absent", func(t *testing.T) {
		t.Parallel()

		backupDirectory := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(backupDirectory, backup.ManifestFileName), []byte("{broken"), 0o644))

		_, found := manager.ReadManifest(backupDirectory)
		require.False(t, found)
	})
}

func TestRestoreFileMissingBackupSurfaces(t *testing.T) {
	t.Parallel()

	manager := newManager(t, true)
	entry := backup.BackupEntry{OriginalPath: filepath.Join(t.TempDir(), "App.csproj"), BackupFileName: "App.csproj.backup_20250314T092653.589"}

	restoreError := manager.RestoreFile(t.TempDir(), entry)
	require.Error(t, restoreError)
}

func TestRollbackRestoresAndCleansUp(t *testing.T) {
	t.Parallel()

	manager := newManager(t, true)
	workDirectory := t.TempDir()
	backupDirectory := filepath.Join(workDirectory, ".cpmig-backups")
	require.NoError(t, os.MkdirAll(backupDirectory, 0o755))

	timestamp := backup.FormatTimestamp(time.Now())
	projectPath := writeWorkFile(t, workDirectory, "App.csproj", "original")
	entry, backupError := manager.CreateBackupForProject(projectPath, backupDirectory, timestamp)
	require.NoError(t, backupError)

	// The migration rewrites the project and creates the central manifest.
	require.NoError(t, os.WriteFile(projectPath, []byte("migrated"), 0o644))
	propsPath := writeWorkFile(t, workDirectory, "Directory.Packages.props", "<Project />")

	require.NoError(t, manager.WriteManifest(backupDirectory, backup.BackupManifest{
		Timestamp:        timestamp,
		PropsFilePath:    propsPath,
		PropsFileExisted: false,
		Backups:          []backup.BackupEntry{entry},
	}))

	outcome := manager.Rollback(backupDirectory)
	require.True(t, outcome.ManifestFound)
	require.Equal(t, 1, outcome.RestoredCount)
	require.Zero(t, outcome.FailedCount)
	require.True(t, outcome.PropsFileDeleted)
	require.Empty(t, outcome.CleanupErrors)

	restored, readError := os.ReadFile(projectPath)
	require.NoError(t, readError)
	require.Equal(t, "original", string(restored))

	require.NoFileExists(t, propsPath)
	require.NoFileExists(t, filepath.Join(backupDirectory, entry.BackupFileName))
	require.NoFileExists(t, filepath.Join(backupDirectory, backup.ManifestFileName))
	require.NoDirExists(t, backupDirectory)
}

func TestRollbackPreservesPreexistingPropsFile(t *testing.T) {
	t.Parallel()

	manager := newManager(t, true)
	workDirectory := t.TempDir()
	backupDirectory := filepath.Join(workDirectory, ".cpmig-backups")
	require.NoError(t, os.MkdirAll(backupDirectory, 0o755))

	timestamp := backup.FormatTimestamp(time.Now())
	projectPath := writeWorkFile(t, workDirectory, "App.csproj", "original")
	entry, backupError := manager.CreateBackupForProject(projectPath, backupDirectory, timestamp)
	require.NoError(t, backupError)

	propsPath := writeWorkFile(t, workDirectory, "Directory.Packages.props", "merged content")

	require.NoError(t, manager.WriteManifest(backupDirectory, backup.BackupManifest{
		Timestamp:        timestamp,
		PropsFilePath:    propsPath,
		PropsFileExisted: true,
		Backups:          []backup.BackupEntry{entry},
	}))

	outcome := manager.Rollback(backupDirectory)
	require.True(t, outcome.ManifestFound)
	require.Zero(t, outcome.FailedCount)
	require.False(t, outcome.PropsFileDeleted)
	require.FileExists(t, propsPath)
}

func TestRollbackFailureLeavesRecoveryMaterial(t *testing.T) {
	t.Parallel()

	manager := newManager(t, true)
	workDirectory := t.TempDir()
	backupDirectory := filepath.Join(workDirectory, ".cpmig-backups")
	require.NoError(t, os.MkdirAll(backupDirectory, 0o755))

	timestamp := backup.FormatTimestamp(time.Now())
	firstProjectPath := writeWorkFile(t, workDirectory, "First.csproj", "first")
	secondProjectPath := writeWorkFile(t, workDirectory, "Second.csproj", "second")

	firstEntry, firstError := manager.CreateBackupForProject(firstProjectPath, backupDirectory, timestamp)
	require.NoError(t, firstError)
	secondEntry, secondError := manager.CreateBackupForProject(secondProjectPath, backupDirectory, timestamp)
	require.NoError(t, secondError)

	propsPath := writeWorkFile(t, workDirectory, "Directory.Packages.props", "<Project />")

	require.NoError(t, manager.WriteManifest(backupDirectory, backup.BackupManifest{
		Timestamp:        timestamp,
		PropsFilePath:    propsPath,
		PropsFileExisted: false,
		Backups:          []backup.BackupEntry{firstEntry, secondEntry},
	}))

	// Fault injection: one backup disappears before rollback.
	require.NoError(t, os.Remove(filepath.Join(backupDirectory, secondEntry.BackupFileName)))
	require.NoError(t, os.WriteFile(secondProjectPath, []byte("mutated"), 0o644))

	outcome := manager.Rollback(backupDirectory)
	require.True(t, outcome.ManifestFound)
	require.Equal(t, 1, outcome.RestoredCount)
	require.Equal(t, 1, outcome.FailedCount)
	require.Len(t, outcome.Failures, 1)
	require.False(t, outcome.PropsFileDeleted)

	// Every restore runs even after a failure.
	restored, readError := os.ReadFile(firstProjectPath)
	require.NoError(t, readError)
	require.Equal(t, "first", string(restored))

	// The manifest, remaining backups, and central manifest all stay on disk.
	require.FileExists(t, filepath.Join(backupDirectory, backup.ManifestFileName))
	require.FileExists(t, filepath.Join(backupDirectory, firstEntry.BackupFileName))
	require.FileExists(t, propsPath)
}

func TestRollbackWithoutManifest(t *testing.T) {
	t.Parallel()

	manager := newManager(t, true)
	outcome := manager.Rollback(t.TempDir())
	require.False(t, outcome.ManifestFound)
	require.Zero(t, outcome.RestoredCount)
}
