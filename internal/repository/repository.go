// Package repository is the single owner of the prompt library's in-memory
// state. Every read and mutation goes through a Repository, which keeps the
// records, the recent list and the favorite set consistent and writes the
// whole document back through its Persister after each change.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dpshade/prompt-library/internal/catalog"
	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/metrics"
	"github.com/dpshade/prompt-library/internal/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultMaxRecent caps the recent list when settings give no usable value.
const DefaultMaxRecent = 10

const (
	idAlphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
	idSuffixSize = 9
)

// Persister loads and saves whole documents. *storage.Store implements it.
type Persister interface {
	Load() (*models.Document, error)
	Save(ctx context.Context, doc *models.Document) error
}

// SettingsProvider supplies the preferences the repository consults on each
// call. *config.Manager implements it.
type SettingsProvider interface {
	MaxRecent() int
	DefaultCategory() models.Category
}

// State is the lifecycle of a Repository.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options wires a Repository to its collaborators.
type Options struct {
	Store    Persister
	Settings SettingsProvider
	Logger   *slog.Logger
	// Clock defaults to UTC wall time at millisecond precision, which is what
	// the document format round-trips.
	Clock func() time.Time
	// IDGenerator returns candidate ids for new prompts. Collisions are
	// retried.
	IDGenerator func() string
}

// Repository owns the prompt collection. It is safe for concurrent use; each
// read-modify-persist sequence runs under one mutex.
type Repository struct {
	mu sync.Mutex

	state    State
	store    Persister
	settings SettingsProvider
	logger   *slog.Logger
	clock    func() time.Time
	newID    func() string

	records   map[string]*models.Prompt
	order     []string
	recent    []string
	favorites map[string]struct{}
	docExtra  map[string]json.RawMessage

	// persistErr is the outcome of the latest save; nil after a success
	persistErr error
}

// Open loads the library through opts.Store, seeding it from the built-in
// catalog when nothing usable is stored, and returns a Ready repository.
func Open(ctx context.Context, opts Options) (*Repository, error) {
	if opts.Store == nil {
		return nil, apperrors.ValidationError("repository requires a store")
	}

	r := &Repository{
		state:    StateUninitialized,
		store:    opts.Store,
		settings: opts.Settings,
		logger:   opts.Logger,
		clock:    opts.Clock,
		newID:    opts.IDGenerator,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.clock == nil {
		r.clock = defaultClock
	}
	if r.newID == nil {
		r.newID = r.defaultID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = StateLoading
	doc, err := r.store.Load()
	switch {
	case err == nil:
		r.replaceLocked(doc)
		r.logger.Info("loaded prompt library", "prompts", len(r.records))
	case apperrors.IsCode(err, apperrors.ErrCodeNotFound):
		r.logger.Info("no stored prompt library, seeding built-in prompts")
		r.seedLocked(ctx)
	default:
		// a document that cannot be read is backed up by the seeding save
		r.logger.Warn("stored prompt library is unusable, seeding built-in prompts", "error", err)
		r.seedLocked(ctx)
	}

	r.state = StateReady
	metrics.Prompts.Set(float64(len(r.records)))
	return r, nil
}

// Close writes any state whose last save failed and moves the repository to
// Closed. Further calls fail with ErrCodeNotReady.
func (r *Repository) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateReady {
		return apperrors.NotReadyError(r.state.String())
	}

	var err error
	if r.persistErr != nil {
		err = r.store.Save(ctx, r.snapshotLocked())
		if err != nil {
			r.logger.Error("final save of prompt library failed", "error", err)
		}
		r.persistErr = err
	}
	r.state = StateClosed
	return err
}

// State reports the lifecycle state.
func (r *Repository) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastPersistError returns the error of the most recent save, or nil if it
// succeeded.
func (r *Repository) LastPersistError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persistErr
}

func (r *Repository) ready() error {
	if r.state != StateReady {
		return apperrors.NotReadyError(r.state.String())
	}
	return nil
}

func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (r *Repository) defaultID() string {
	suffix, err := gonanoid.Generate(idAlphabet, idSuffixSize)
	if err != nil {
		panic("nanoid generation failed: " + err.Error())
	}
	return fmt.Sprintf("prompt-%d-%s", r.clock().UnixMilli(), suffix)
}

func (r *Repository) seedLocked(ctx context.Context) {
	r.records = make(map[string]*models.Prompt)
	r.order = nil
	r.recent = nil
	r.favorites = make(map[string]struct{})
	r.docExtra = nil
	for _, p := range catalog.Default() {
		r.putLocked(p)
	}
	r.persistLocked(ctx, "seed")
}

// replaceLocked installs a loaded document, dropping derived ids that do not
// resolve and keeping the last record for a duplicated id.
func (r *Repository) replaceLocked(doc *models.Document) {
	r.records = make(map[string]*models.Prompt, len(doc.Prompts))
	r.order = make([]string, 0, len(doc.Prompts))
	for _, p := range doc.Prompts {
		if p == nil || p.ID == "" {
			continue
		}
		r.putLocked(normalize(p.Clone(), r.clock()))
	}

	r.recent = make([]string, 0, len(doc.RecentPrompts))
	seen := make(map[string]bool)
	for _, id := range doc.RecentPrompts {
		if _, ok := r.records[id]; ok && !seen[id] {
			seen[id] = true
			r.recent = append(r.recent, id)
		}
	}
	if limit := r.maxRecent(); len(r.recent) > limit {
		r.recent = r.recent[:limit]
	}

	r.favorites = make(map[string]struct{}, len(doc.Favorites))
	for _, id := range doc.Favorites {
		if _, ok := r.records[id]; ok {
			r.favorites[id] = struct{}{}
		}
	}
	r.docExtra = doc.Extra()
}

// putLocked inserts or replaces a record, keeping first-insertion order.
func (r *Repository) putLocked(p *models.Prompt) {
	if _, exists := r.records[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.records[p.ID] = p
}

func (r *Repository) removeLocked(id string) {
	delete(r.records, id)
	delete(r.favorites, id)
	r.recent = without(r.recent, id)
	r.order = without(r.order, id)
}

func (r *Repository) snapshotLocked() *models.Document {
	doc := &models.Document{
		Version:       models.CurrentDocumentVersion,
		ExportDate:    r.clock(),
		Prompts:       r.allLocked(),
		RecentPrompts: append([]string{}, r.recent...),
		Favorites:     r.favoriteIDsLocked(),
	}
	doc.SetExtra(r.docExtra)
	return doc
}

// persistLocked saves the current state. A failure is logged and remembered
// but the in-memory change stands.
func (r *Repository) persistLocked(ctx context.Context, op string) {
	metrics.Operations.WithLabelValues(op).Inc()
	metrics.Prompts.Set(float64(len(r.records)))

	if err := r.store.Save(ctx, r.snapshotLocked()); err != nil {
		r.persistErr = err
		metrics.PersistFailures.Inc()
		r.logger.Warn("failed to persist prompt library", "op", op, "error", err)
		return
	}
	r.persistErr = nil
}

func (r *Repository) maxRecent() int {
	if r.settings == nil {
		return DefaultMaxRecent
	}
	if n := r.settings.MaxRecent(); n > 0 {
		return n
	}
	return DefaultMaxRecent
}

func (r *Repository) defaultCategory() models.Category {
	fallback := models.DefaultCategory()
	if r.settings == nil {
		return fallback
	}
	c := r.settings.DefaultCategory()
	if c.AIModel == "" {
		c.AIModel = fallback.AIModel
	}
	if c.Application == "" {
		c.Application = fallback.Application
	}
	return c
}

// normalize repairs fields a hand-edited or imported record may lack.
func normalize(p *models.Prompt, now time.Time) *models.Prompt {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Category.AIModel == "" {
		p.Category.AIModel = models.OtherAIModel
	}
	if p.Category.Application == "" {
		p.Category.Application = models.OtherApplication
	}
	if p.DateCreated.IsZero() {
		p.DateCreated = now
	}
	if p.DateModified.Before(p.DateCreated) {
		p.DateModified = p.DateCreated
	}
	if p.UsageCount < 0 {
		p.UsageCount = 0
	}
	return p
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
