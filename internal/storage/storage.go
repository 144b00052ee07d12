// Package storage persists the prompt library as a single JSON document with
// timestamped, rotating backups.
package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/models"
	"github.com/moby/sys/atomicwriter"
)

const (
	// PrimaryFile is the document name inside the data directory.
	PrimaryFile = "prompts.json"
	// BackupDir is the backup directory name inside the data directory.
	BackupDir = "backups"

	DefaultBackupRetention = 10
	DefaultRetryAttempts   = 3
	DefaultRetryDelay      = 50 * time.Millisecond
)

// Options configures a Store.
type Options struct {
	// Dir is the data directory; it is created on first save.
	Dir string
	// BackupRetention is how many backups survive rotation.
	BackupRetention int
	// RetryAttempts bounds retries of the primary write.
	RetryAttempts uint
	RetryDelay    time.Duration
	Logger        *slog.Logger
	// Now stamps backup names. Defaults to time.Now.
	Now func() time.Time
	// OnPrune is called with the number of backups removed by a rotation.
	OnPrune func(removed int)
}

// Store reads and writes the library document. It never keeps a reference to
// a document after a call returns.
type Store struct {
	dir       string
	retention int
	attempts  uint
	delay     time.Duration
	logger    *slog.Logger
	now       func() time.Time
	onPrune   func(int)

	// mu serializes saves so backup sequencing stays ordered
	mu  sync.Mutex
	seq uint64
}

// New creates a store rooted at opts.Dir.
func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, apperrors.ValidationError("storage directory is required")
	}
	if _, err := loadDocumentSchema(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "Document schema is invalid")
	}

	s := &Store{
		dir:       opts.Dir,
		retention: opts.BackupRetention,
		attempts:  opts.RetryAttempts,
		delay:     opts.RetryDelay,
		logger:    opts.Logger,
		now:       opts.Now,
		onPrune:   opts.OnPrune,
	}
	if s.retention <= 0 {
		s.retention = DefaultBackupRetention
	}
	if s.attempts == 0 {
		s.attempts = DefaultRetryAttempts
	}
	if s.delay <= 0 {
		s.delay = DefaultRetryDelay
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the primary document path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, PrimaryFile)
}

// BackupPath returns the backup directory path.
func (s *Store) BackupPath() string {
	return filepath.Join(s.dir, BackupDir)
}

// Load reads the primary document. A missing file yields an ErrCodeNotFound
// error, which is the normal first-run outcome. Content that is not a valid
// document yields ErrCodeCorruptData.
func (s *Store) Load() (*models.Document, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFoundError("prompt library document").WithContext("path", s.Path())
		}
		return nil, apperrors.PersistenceError("read primary document", err).WithContext("path", s.Path())
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, apperrors.CorruptDataError(s.Path(), err)
	}
	return doc, nil
}

// Save backs up the current primary document, rotates old backups and then
// atomically replaces the primary file with doc. Backup and rotation failures
// are logged and never fail the save.
func (s *Store) Save(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return apperrors.ValidationError("document is required")
	}
	data, err := EncodeDocument(doc)
	if err != nil {
		return apperrors.PersistenceError("encode document", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writePrimary(ctx, data)
}

func (s *Store) writePrimary(ctx context.Context, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return apperrors.PersistenceError("create data directory", err).WithContext("dir", s.dir)
	}

	if _, err := s.backupLocked(); err != nil {
		s.logger.Warn("failed to back up prompt library", "error", err)
	} else {
		s.rotateLocked()
	}

	err := retry.Do(
		func() error {
			return atomicwriter.WriteFile(s.Path(), data, 0o644)
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("retrying prompt library write", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return apperrors.PersistenceError("write primary document", err).WithContext("path", s.Path())
	}

	s.logger.Debug("saved prompt library", "path", s.Path(), "bytes", len(data))
	return nil
}
