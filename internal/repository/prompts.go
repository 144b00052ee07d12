package repository

import (
	"context"
	"sort"

	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/models"
)

const maxIDAttempts = 100

// GetAll returns a copy of every record in stable insertion order.
func (r *Repository) GetAll() ([]*models.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, err
	}
	return r.allLocked(), nil
}

func (r *Repository) allLocked() []*models.Prompt {
	out := make([]*models.Prompt, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id].Clone())
	}
	return out
}

// Get returns a copy of the record, or nil when no record has that id.
func (r *Repository) Get(id string) (*models.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, err
	}
	return r.records[id].Clone(), nil
}

// Create adds a custom prompt. Empty fields take defaults: the placeholder
// title, the configured default category and no tags.
func (r *Repository) Create(ctx context.Context, in models.NewPrompt) (*models.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	id, err := r.uniqueIDLocked()
	if err != nil {
		return nil, err
	}

	now := r.clock()
	p := &models.Prompt{
		ID:           id,
		Title:        in.Title,
		Description:  in.Description,
		Content:      in.Content,
		Category:     r.defaultCategory(),
		Tags:         append([]string{}, in.Tags...),
		IsCustom:     true,
		DateCreated:  now,
		DateModified: now,
	}
	if p.Title == "" {
		p.Title = models.UntitledPrompt
	}
	if in.Category != nil {
		if in.Category.AIModel != "" {
			p.Category.AIModel = in.Category.AIModel
		}
		if in.Category.Application != "" {
			p.Category.Application = in.Category.Application
		}
	}

	r.putLocked(p)
	r.persistLocked(ctx, "create")
	r.logger.Debug("created prompt", "id", id)
	return p.Clone(), nil
}

func (r *Repository) uniqueIDLocked() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := r.newID()
		if id == "" {
			continue
		}
		if _, taken := r.records[id]; !taken {
			return id, nil
		}
	}
	return "", apperrors.InternalError("could not generate a unique prompt id")
}

// Update merges the set fields of u over the record and returns the result,
// or nil when no record has that id. The id and isCustom flag cannot be
// changed; PromptUpdate has no way to express either.
func (r *Repository) Update(ctx context.Context, id string, u models.PromptUpdate) (*models.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	existing, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	if u.UsageCount != nil && *u.UsageCount < existing.UsageCount {
		return nil, apperrors.ValidationError("usageCount cannot decrease").
			WithContext("id", id).
			WithContext("current", existing.UsageCount)
	}

	p := existing.Clone()
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Content != nil {
		p.Content = *u.Content
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Tags != nil {
		p.Tags = append([]string{}, (*u.Tags)...)
	}
	if u.UsageCount != nil {
		p.UsageCount = *u.UsageCount
	}
	if u.LastUsed != nil {
		used := *u.LastUsed
		p.LastUsed = &used
	}

	p.DateModified = r.clock()
	if p.DateModified.Before(p.DateCreated) {
		p.DateModified = p.DateCreated
	}

	r.records[id] = p
	r.persistLocked(ctx, "update")
	return p.Clone(), nil
}

// Delete removes the record and its favorite and recent entries. It reports
// false when there was nothing to delete.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return false, err
	}

	if _, ok := r.records[id]; !ok {
		return false, nil
	}
	r.removeLocked(id)
	r.persistLocked(ctx, "delete")
	return true, nil
}

// MarkUsed counts a use of the record and moves it to the front of the recent
// list. Unknown ids are ignored.
func (r *Repository) MarkUsed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return err
	}

	p, ok := r.records[id]
	if !ok {
		return nil
	}

	now := r.clock()
	p.UsageCount++
	p.LastUsed = &now

	r.recent = append([]string{id}, without(r.recent, id)...)
	if limit := r.maxRecent(); len(r.recent) > limit {
		r.recent = r.recent[:limit]
	}

	r.persistLocked(ctx, "use")
	return nil
}

// ToggleFavorite flips favorite membership and returns the new state. The id
// must exist; unknown ids fail with ErrCodeNotFound.
func (r *Repository) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return false, err
	}

	if _, ok := r.records[id]; !ok {
		return false, apperrors.NotFoundError("prompt " + id).WithContext("id", id)
	}

	_, favorite := r.favorites[id]
	if favorite {
		delete(r.favorites, id)
	} else {
		r.favorites[id] = struct{}{}
	}
	r.persistLocked(ctx, "favorite")
	return !favorite, nil
}

// IsFavorite reports favorite membership.
func (r *Repository) IsFavorite(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return false, err
	}
	_, ok := r.favorites[id]
	return ok, nil
}

// GetRecent returns the recently used records, most recent first.
func (r *Repository) GetRecent() ([]*models.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	out := make([]*models.Prompt, 0, len(r.recent))
	for _, id := range r.recent {
		if p, ok := r.records[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// Last returns the most recently used record, or nil if nothing has been
// used yet.
func (r *Repository) Last() (*models.Prompt, error) {
	recent, err := r.GetRecent()
	if err != nil || len(recent) == 0 {
		return nil, err
	}
	return recent[0], nil
}

// GetFavorites returns the favorite records ordered by id.
func (r *Repository) GetFavorites() ([]*models.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	out := make([]*models.Prompt, 0, len(r.favorites))
	for _, id := range r.favoriteIDsLocked() {
		if p, ok := r.records[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (r *Repository) favoriteIDsLocked() []string {
	ids := make([]string, 0, len(r.favorites))
	for id := range r.favorites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
