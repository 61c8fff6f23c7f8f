package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/centralpkg/cpmig/internal/shared"
)

const (
	manifestFileNameConstant            = "backup_manifest.json"
	backupSuffixSeparatorConstant       = ".backup_"
	backupTimestampLayoutConstant       = "20060102T150405.000"
	backupDirectoryPermissions          = 0o755
	backupFilePermissions               = 0o644
	duplicateNameInfixTemplateConstant  = "%s.%d"
	backupCreateErrorTemplateConstant   = "unable to back up %s: %w"
	backupWriteErrorTemplateConstant    = "unable to write backup %s: %w"
	manifestWriteErrorTemplateConstant  = "unable to write backup manifest: %w"
	manifestEncodeErrorTemplateConstant = "unable to encode backup manifest: %w"
	restoreMissingErrorTemplateConstant = "backup file %s is missing: %w"
	restoreWriteErrorTemplateConstant   = "unable to restore %s: %w"
	directoryCreateErrorTemplate        = "unable to create backup directory %s: %w"
	manifestMalformedWarningConstant    = "Backup manifest is malformed; treating it as absent"
	manifestPathFieldConstant           = "manifest_path"
	manifestIndentConstant              = "  "
)

// ManifestFileName is the canonical backup manifest file name.
const ManifestFileName = manifestFileNameConstant

// Manager owns a backup directory for one migration run.
type Manager struct {
	logger         *zap.Logger
	fileSystem     shared.FileSystem
	backupsEnabled bool
}

// NewManager constructs a backup manager. When backups are disabled every
// creation operation becomes a no-op with an empty result.
func NewManager(logger *zap.Logger, fileSystem shared.FileSystem, backupsEnabled bool) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger, fileSystem: fileSystem, backupsEnabled: backupsEnabled}
}

// Enabled reports whether backup creation is active.
func (manager *Manager) Enabled() bool {
	return manager.backupsEnabled
}

// FormatTimestamp renders the shared run timestamp at millisecond resolution.
func FormatTimestamp(moment time.Time) string {
	return moment.Format(backupTimestampLayoutConstant)
}

// CreateBackupDirectory ensures the backup directory exists. Idempotent, and
// a no-op returning an empty path when backups are disabled.
func (manager *Manager) CreateBackupDirectory(backupDirectory string) (string, error) {
	if !manager.backupsEnabled {
		return "", nil
	}
	if mkdirError := manager.fileSystem.MkdirAll(backupDirectory, backupDirectoryPermissions); mkdirError != nil {
		return "", fmt.Errorf(directoryCreateErrorTemplate, backupDirectory, mkdirError)
	}
	return backupDirectory, nil
}

// CreateBackupForProject copies the file into the backup directory under the
// shared run timestamp. Same-named files within one run receive a numeric
// infix so backup file names stay unique.
func (manager *Manager) CreateBackupForProject(filePath string, backupDirectory string, sharedTimestamp string) (BackupEntry, error) {
	fileData, readError := manager.fileSystem.ReadFile(filePath)
	if readError != nil {
		return BackupEntry{}, fmt.Errorf(backupCreateErrorTemplateConstant, filePath, readError)
	}

	backupFileName := filepath.Base(filePath) + backupSuffixSeparatorConstant + sharedTimestamp
	for duplicateIndex := 1; manager.fileExists(filepath.Join(backupDirectory, backupFileName)); duplicateIndex++ {
		backupFileName = fmt.Sprintf(duplicateNameInfixTemplateConstant, filepath.Base(filePath), duplicateIndex) + backupSuffixSeparatorConstant + sharedTimestamp
	}

	backupPath := filepath.Join(backupDirectory, backupFileName)
	if writeError := manager.fileSystem.WriteFile(backupPath, fileData, backupFilePermissions); writeError != nil {
		return BackupEntry{}, fmt.Errorf(backupWriteErrorTemplateConstant, backupPath, writeError)
	}

	return BackupEntry{OriginalPath: filePath, BackupFileName: backupFileName}, nil
}

// WriteManifest persists the manifest as backup_manifest.json in the backup directory.
func (manager *Manager) WriteManifest(backupDirectory string, manifest BackupManifest) error {
	encodedManifest, encodeError := json.MarshalIndent(manifest, "", manifestIndentConstant)
	if encodeError != nil {
		return fmt.Errorf(manifestEncodeErrorTemplateConstant, encodeError)
	}
	manifestPath := filepath.Join(backupDirectory, manifestFileNameConstant)
	if writeError := manager.fileSystem.WriteFile(manifestPath, encodedManifest, backupFilePermissions); writeError != nil {
		return fmt.Errorf(manifestWriteErrorTemplateConstant, writeError)
	}
	return nil
}

// ReadManifest loads the manifest from the backup directory. A missing or
// malformed manifest is reported as absent; malformed content is logged and
// never propagated as a failure.
func (manager *Manager) ReadManifest(backupDirectory string) (BackupManifest, bool) {
	manifestPath := filepath.Join(backupDirectory, manifestFileNameConstant)

	manifestData, readError := manager.fileSystem.ReadFile(manifestPath)
	if readError != nil {
		return BackupManifest{}, false
	}

	var manifest BackupManifest
	if unmarshalError := json.Unmarshal(manifestData, &manifest); unmarshalError != nil {
		manager.logger.Warn(manifestMalformedWarningConstant, zap.String(manifestPathFieldConstant, manifestPath), zap.Error(unmarshalError))
		return BackupManifest{}, false
	}

	return manifest, true
}

// RestoreFile copies the backup over the original file. A missing backup is a
// surfaced error; swallowing it would leave the tree silently inconsistent.
func (manager *Manager) RestoreFile(backupDirectory string, entry BackupEntry) error {
	backupPath := filepath.Join(backupDirectory, entry.BackupFileName)

	backupData, readError := manager.fileSystem.ReadFile(backupPath)
	if readError != nil {
		return fmt.Errorf(restoreMissingErrorTemplateConstant, backupPath, readError)
	}

	if writeError := manager.fileSystem.WriteFile(entry.OriginalPath, backupData, backupFilePermissions); writeError != nil {
		return fmt.Errorf(restoreWriteErrorTemplateConstant, entry.OriginalPath, writeError)
	}

	return nil
}

// CleanupBackups deletes every listed backup, then the manifest, then the
// possibly empty backup directory. Per-file failures are collected and never
// abort the remaining deletions.
func (manager *Manager) CleanupBackups(backupDirectory string, manifest BackupManifest) []string {
	var cleanupErrors []string

	for _, entry := range manifest.Backups {
		backupPath := filepath.Join(backupDirectory, entry.BackupFileName)
		if removeError := manager.fileSystem.Remove(backupPath); removeError != nil && !os.IsNotExist(removeError) {
			cleanupErrors = append(cleanupErrors, removeError.Error())
		}
	}

	manifestPath := filepath.Join(backupDirectory, manifestFileNameConstant)
	if removeError := manager.fileSystem.Remove(manifestPath); removeError != nil && !os.IsNotExist(removeError) {
		cleanupErrors = append(cleanupErrors, removeError.Error())
	}

	// Other backup sets may still live here; a non-empty directory is fine.
	_ = manager.fileSystem.Remove(backupDirectory)

	return cleanupErrors
}

// Rollback restores every manifest entry, then decides what to delete. All
// restores run before any deletion; if any restore fails the manifest and the
// backups stay on disk so manual recovery material always remains. The
// central manifest file is deleted only when this run created it.
func (manager *Manager) Rollback(backupDirectory string) RollbackOutcome {
	manifest, manifestFound := manager.ReadManifest(backupDirectory)
	if !manifestFound {
		return RollbackOutcome{}
	}

	outcome := RollbackOutcome{ManifestFound: true}
	for _, entry := range manifest.Backups {
		if restoreError := manager.RestoreFile(backupDirectory, entry); restoreError != nil {
			outcome.FailedCount++
			outcome.Failures = append(outcome.Failures, restoreError.Error())
			continue
		}
		outcome.RestoredCount++
	}

	if outcome.FailedCount > 0 {
		return outcome
	}

	if !manifest.PropsFileExisted && len(manifest.PropsFilePath) > 0 {
		if removeError := manager.fileSystem.Remove(manifest.PropsFilePath); removeError == nil {
			outcome.PropsFileDeleted = true
		} else if !os.IsNotExist(removeError) {
			outcome.CleanupErrors = append(outcome.CleanupErrors, removeError.Error())
		}
	}

	outcome.CleanupErrors = append(outcome.CleanupErrors, manager.CleanupBackups(backupDirectory, manifest)...)
	return outcome
}

func (manager *Manager) fileExists(path string) bool {
	_, statError := manager.fileSystem.Stat(path)
	return statError == nil
}
