package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/models"
)

const (
	backupPrefix = "prompts-"
	backupSuffix = ".json"
	// backupStamp sorts lexically in time order and resolves nanoseconds.
	backupStamp = "20060102T150405.000000000Z"
)

// BackupInfo describes one backup file.
type BackupInfo struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// backupName builds a name that cannot collide within one process: the
// sequence number breaks ties between saves in the same clock tick.
func (s *Store) backupName() string {
	s.seq++
	stamp := s.now().UTC().Format(backupStamp)
	return fmt.Sprintf("%s%s-%06d%s", backupPrefix, stamp, s.seq, backupSuffix)
}

// backupLocked copies the current primary file into the backup directory.
// It returns an empty name when there is nothing to back up.
func (s *Store) backupLocked() (string, error) {
	current, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read primary document: %w", err)
	}

	if err := os.MkdirAll(s.BackupPath(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := s.backupName()
	path := filepath.Join(s.BackupPath(), name)
	if err := os.WriteFile(path, current, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup %s: %w", name, err)
	}
	return name, nil
}

// rotateLocked deletes all but the newest retention backups. Every failure is
// logged and swallowed.
func (s *Store) rotateLocked() {
	backups, err := s.listBackups()
	if err != nil {
		s.logger.Warn("failed to list backups for rotation", "error", err)
		return
	}
	if len(backups) <= s.retention {
		return
	}

	removed := 0
	for _, b := range backups[s.retention:] {
		if err := os.Remove(b.Path); err != nil {
			s.logger.Warn("failed to delete old backup", "backup", b.Name, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Debug("pruned old backups", "removed", removed)
		if s.onPrune != nil {
			s.onPrune(removed)
		}
	}
}

// ListBackups returns the backups newest first.
func (s *Store) ListBackups() ([]BackupInfo, error) {
	backups, err := s.listBackups()
	if err != nil {
		return nil, apperrors.PersistenceError("list backups", err)
	}
	return backups, nil
}

func (s *Store) listBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.BackupPath())
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isBackupName(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		backups = append(backups, BackupInfo{
			Name:    name,
			Path:    filepath.Join(s.BackupPath(), name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].ModTime.Equal(backups[j].ModTime) {
			return backups[i].ModTime.After(backups[j].ModTime)
		}
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

// RestoreBackup replaces the primary document with the named backup. The
// current primary is itself backed up first, so a restore can be undone.
func (s *Store) RestoreBackup(ctx context.Context, name string) (*models.Document, error) {
	if name != filepath.Base(name) || !isBackupName(name) {
		return nil, apperrors.ValidationError(fmt.Sprintf("invalid backup name %q", name))
	}

	data, err := os.ReadFile(filepath.Join(s.BackupPath(), name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFoundError("backup " + name)
		}
		return nil, apperrors.PersistenceError("read backup", err)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, apperrors.CorruptDataError(name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writePrimary(ctx, data); err != nil {
		return nil, err
	}

	s.logger.Info("restored prompt library from backup", "backup", name)
	return doc, nil
}

func isBackupName(name string) bool {
	return strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix)
}
