package jsonlstore

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xolan/mondo/internal/docstore"
)

const (
	// BackupSuffix is the file extension for backup files
	BackupSuffix = ".bak"
	// MaxBackupCount is the maximum number of backup files to keep
	MaxBackupCount = 3
)

// BackupInfo describes one backup file. Number 1 is the most recent.
type BackupInfo struct {
	Number int
	Path   string
}

// BackupPath returns the path of backup n for the file at path.
func BackupPath(path string, n int) string {
	return fmt.Sprintf("%s%s.%d", path, BackupSuffix, n)
}

// rotateBackups shifts .bak.1 -> .bak.2 -> .bak.3, dropping the oldest.
// Missing files are skipped.
func rotateBackups(path string) error {
	if err := os.Remove(BackupPath(path, MaxBackupCount)); err != nil && !os.IsNotExist(err) {
		return err
	}

	for i := MaxBackupCount - 1; i >= 1; i-- {
		if err := os.Rename(BackupPath(path, i), BackupPath(path, i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// CreateBackup rotates existing backups and copies path to .bak.1. A missing
// file is not an error.
func CreateBackup(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := rotateBackups(path); err != nil {
		return err
	}
	return copyFile(path, BackupPath(path, 1))
}

// ListBackups returns the existing backups of path, most recent first.
func ListBackups(path string) []BackupInfo {
	var backups []BackupInfo
	for i := 1; i <= MaxBackupCount; i++ {
		p := BackupPath(path, i)
		if _, err := os.Stat(p); err == nil {
			backups = append(backups, BackupInfo{Number: i, Path: p})
		}
	}
	return backups
}

// Backups lists the backups of a collection file.
func (s *Store) Backups(collection string) []BackupInfo {
	return ListBackups(s.Path(collection))
}

// Restore replaces a collection with backup n. The current file is backed up
// first, and live queries receive the restored snapshot.
func (s *Store) Restore(ctx context.Context, collection string, n int) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	if n < 1 || n > MaxBackupCount {
		return fmt.Errorf("invalid backup number %d, must be between 1 and %d", n, MaxBackupCount)
	}

	path := s.Path(collection)
	backup := BackupPath(path, n)

	s.mu.Lock()
	err := func() error {
		if s.closed {
			return docstore.ErrClosed
		}
		if _, err := os.Stat(backup); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("backup %d does not exist", n)
			}
			return err
		}
		// Rotation renames .bak.n to .bak.n+1, so read it before backing up.
		data, err := os.ReadFile(backup)
		if err != nil {
			return err
		}
		if err := CreateBackup(path); err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	}()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.feed.Notify(ctx, collection)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
