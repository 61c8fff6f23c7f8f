package backup

// BackupEntry maps one backed-up file to its backup file name.
type BackupEntry struct {
	OriginalPath   string `json:"originalPath"`
	BackupFileName string `json:"backupFileName"`
}

// BackupManifest is the durable record of one migration run's backup set.
// Once written it is the immutable truth for rollback.
type BackupManifest struct {
	Timestamp        string        `json:"timestamp"`
	PropsFilePath    string        `json:"propsFilePath"`
	PropsFileExisted bool          `json:"propsFileExisted"`
	Backups          []BackupEntry `json:"backups"`
}

// BackupSetInfo groups on-disk backups sharing a timestamp. It is derived by
// scanning the backup directory and never persisted.
type BackupSetInfo struct {
	Timestamp string
	Files     []string
}

// PruneResult summarizes a retention operation.
type PruneResult struct {
	KeptCount      int
	BackupsRemoved int
	FilesRemoved   int
	BytesFreed     int64
	Errors         []string
}

// RollbackOutcome reports the observable results of a rollback run.
type RollbackOutcome struct {
	ManifestFound    bool
	RestoredCount    int
	FailedCount      int
	Failures         []string
	PropsFileDeleted bool
	CleanupErrors    []string
}
