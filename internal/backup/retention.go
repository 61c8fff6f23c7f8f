package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const backupDirectoryReadErrorTemplate = "unable to read backup directory %s: %w"

// GetBackupHistory groups on-disk backups by their embedded timestamp, newest
// set first. File names within a set are sorted.
func (manager *Manager) GetBackupHistory(backupDirectory string) ([]BackupSetInfo, error) {
	directoryEntries, readError := manager.fileSystem.ReadDir(backupDirectory)
	if readError != nil {
		if os.IsNotExist(readError) {
			return nil, nil
		}
		return nil, fmt.Errorf(backupDirectoryReadErrorTemplate, backupDirectory, readError)
	}

	filesByTimestamp := make(map[string][]string)
	for _, directoryEntry := range directoryEntries {
		if directoryEntry.IsDir() {
			continue
		}
		separatorIndex := strings.LastIndex(directoryEntry.Name(), backupSuffixSeparatorConstant)
		if separatorIndex < 0 {
			continue
		}
		timestamp := directoryEntry.Name()[separatorIndex+len(backupSuffixSeparatorConstant):]
		if len(timestamp) != len(backupTimestampLayoutConstant) {
			continue
		}
		filesByTimestamp[timestamp] = append(filesByTimestamp[timestamp], directoryEntry.Name())
	}

	timestamps := make([]string, 0, len(filesByTimestamp))
	for timestamp := range filesByTimestamp {
		timestamps = append(timestamps, timestamp)
	}
	// The fixed layout makes lexicographic order chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(timestamps)))

	backupSets := make([]BackupSetInfo, 0, len(timestamps))
	for _, timestamp := range timestamps {
		files := filesByTimestamp[timestamp]
		sort.Strings(files)
		backupSets = append(backupSets, BackupSetInfo{Timestamp: timestamp, Files: files})
	}
	return backupSets, nil
}

// PruneBackups removes every backup set beyond the newest keepCount sets.
func (manager *Manager) PruneBackups(backupDirectory string, keepCount int) (PruneResult, error) {
	if keepCount < 0 {
		keepCount = 0
	}

	backupSets, historyError := manager.GetBackupHistory(backupDirectory)
	if historyError != nil {
		return PruneResult{}, historyError
	}

	result := PruneResult{}
	for setIndex, backupSet := range backupSets {
		if setIndex < keepCount {
			result.KeptCount++
			continue
		}
		manager.removeBackupSet(backupDirectory, backupSet, &result)
	}
	return result, nil
}

// PruneAllBackups removes every backup set plus the manifest and, when it
// ends up empty, the backup directory itself.
func (manager *Manager) PruneAllBackups(backupDirectory string) (PruneResult, error) {
	backupSets, historyError := manager.GetBackupHistory(backupDirectory)
	if historyError != nil {
		return PruneResult{}, historyError
	}

	result := PruneResult{}
	for _, backupSet := range backupSets {
		manager.removeBackupSet(backupDirectory, backupSet, &result)
	}

	manifestPath := filepath.Join(backupDirectory, manifestFileNameConstant)
	if removeError := manager.fileSystem.Remove(manifestPath); removeError != nil && !os.IsNotExist(removeError) {
		result.Errors = append(result.Errors, removeError.Error())
	}

	_ = manager.fileSystem.Remove(backupDirectory)

	return result, nil
}

func (manager *Manager) removeBackupSet(backupDirectory string, backupSet BackupSetInfo, result *PruneResult) {
	setRemoved := false
	for _, fileName := range backupSet.Files {
		backupPath := filepath.Join(backupDirectory, fileName)

		var fileSize int64
		if fileInfo, statError := manager.fileSystem.Stat(backupPath); statError == nil {
			fileSize = fileInfo.Size()
		}

		if removeError := manager.fileSystem.Remove(backupPath); removeError != nil {
			result.Errors = append(result.Errors, removeError.Error())
			continue
		}

		result.FilesRemoved++
		result.BytesFreed += fileSize
		setRemoved = true
	}
	if setRemoved {
		result.BackupsRemoved++
	}
}
