package addons

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/bnema/vpkctl/internal/logger"
)

const (
	// MaxBackupsPerFile is the number of copies kept for each backed up file
	MaxBackupsPerFile = 3
	// BackupTimestampFormat names the backup copies
	BackupTimestampFormat = "20060102-150405"

	// ManifestBackupName groups the copies of the game's addonlist.txt
	ManifestBackupName = "addonlist"

	backupExt = ".txt"
)

var ErrBackupNotFound = errors.New("backup not found")

// BackupManager keeps timestamped copies of files vpkctl is about to
// overwrite outside its library, such as the game manifest
type BackupManager struct {
	fs        afero.Fs
	backupDir string
	log       *log.Logger
	now       func() time.Time
}

// NewBackupManager stores backups under dir/<name>/<timestamp>.txt
func NewBackupManager(fs afero.Fs, dir string, log *log.Logger) *BackupManager {
	return &BackupManager{
		fs:        fs,
		backupDir: dir,
		log:       logger.OrDiscard(log),
		now:       time.Now,
	}
}

// Dir is the directory holding the copies of name
func (bm *BackupManager) Dir(name string) string {
	return filepath.Join(bm.backupDir, name)
}

// CreateBackup copies src and prunes the oldest copies. A missing src is
// not an error and yields "".
func (bm *BackupManager) CreateBackup(src, name string) (string, error) {
	if exists, _ := afero.Exists(bm.fs, src); !exists {
		return "", nil
	}

	dir := bm.Dir(name)
	if err := bm.fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	stamp := bm.now().Format(BackupTimestampFormat)
	backupPath := filepath.Join(dir, uniqueFileName(bm.fs, dir, stamp, backupExt))
	if err := copyFile(bm.fs, src, backupPath); err != nil {
		_ = bm.fs.Remove(backupPath)
		return "", fmt.Errorf("failed to backup %s: %w", src, err)
	}

	if err := bm.cleanupOldBackups(name); err != nil {
		bm.log.Warn("Failed to cleanup old backups", "name", name, "error", err)
	}
	bm.log.Debug("Created backup", "source", src, "backup", backupPath)
	return backupPath, nil
}

// RestoreBackup copies the backup id of name over dst
func (bm *BackupManager) RestoreBackup(name, id, dst string) error {
	backupPath := filepath.Join(bm.Dir(name), id+backupExt)
	if exists, _ := afero.Exists(bm.fs, backupPath); !exists {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}
	if err := bm.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := copyFile(bm.fs, backupPath, dst); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	return nil
}

// ListBackups lists the backup ids of name, newest first
func (bm *BackupManager) ListBackups(name string) ([]string, error) {
	entries, err := afero.ReadDir(bm.fs, bm.Dir(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), backupExt) {
			backups = append(backups, strings.TrimSuffix(entry.Name(), backupExt))
		}
	}

	// Timestamps sort lexically; "(n)" suffixes sort after their base
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

// GetLatestBackup returns the newest backup id of name
func (bm *BackupManager) GetLatestBackup(name string) (string, error) {
	backups, err := bm.ListBackups(name)
	if err != nil {
		return "", err
	}
	if len(backups) == 0 {
		return "", fmt.Errorf("%w: no backups for %s", ErrBackupNotFound, name)
	}
	return backups[0], nil
}

// DeleteBackup deletes one backup
func (bm *BackupManager) DeleteBackup(name, id string) error {
	return bm.fs.Remove(filepath.Join(bm.Dir(name), id+backupExt))
}

func (bm *BackupManager) cleanupOldBackups(name string) error {
	backups, err := bm.ListBackups(name)
	if err != nil {
		return err
	}
	if len(backups) <= MaxBackupsPerFile {
		return nil
	}
	for _, id := range backups[MaxBackupsPerFile:] {
		if err := bm.DeleteBackup(name, id); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(fs afero.Fs, src, dst string) error {
	srcFile, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = dstFile.Close() }()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
