package repository

import (
	"sort"
	"strings"

	"github.com/dpshade/prompt-library/internal/models"
	"github.com/sahilm/fuzzy"
)

const topUsedCount = 5

// Search applies the structural filters, then keeps records whose lowercase
// text contains query, and ranks the survivors by usage.
func (r *Repository) Search(query string, filters models.Filters) ([]*models.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var results []*models.Prompt
	for _, id := range r.order {
		p := r.records[id]
		if !filters.Match(p) {
			continue
		}
		if needle != "" && !strings.Contains(p.Haystack(), needle) {
			continue
		}
		results = append(results, p.Clone())
	}

	sortByRelevance(results)
	return results, nil
}

// sortByRelevance orders by usage count, then by last use when both records
// have one, then by creation date. All keys descend.
func sortByRelevance(prompts []*models.Prompt) {
	sort.SliceStable(prompts, func(i, j int) bool {
		a, b := prompts[i], prompts[j]
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		if a.LastUsed != nil && b.LastUsed != nil && !a.LastUsed.Equal(*b.LastUsed) {
			return a.LastUsed.After(*b.LastUsed)
		}
		return a.DateCreated.After(b.DateCreated)
	})
}

// fuzzySource exposes prompts to sahilm/fuzzy without building a parallel
// string slice.
type fuzzySource []*models.Prompt

func (s fuzzySource) String(i int) string {
	p := s[i]
	return p.Title + " " + p.Description + " " + p.ID + " " + strings.Join(p.Tags, " ")
}

func (s fuzzySource) Len() int { return len(s) }

// FuzzySearch ranks the filtered records by fuzzy match score against their
// title, description, id and tags. An empty query behaves like Search.
func (r *Repository) FuzzySearch(query string, filters models.Filters) ([]*models.Prompt, error) {
	if strings.TrimSpace(query) == "" {
		return r.Search("", filters)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	var candidates fuzzySource
	for _, id := range r.order {
		if p := r.records[id]; filters.Match(p) {
			candidates = append(candidates, p)
		}
	}

	matches := fuzzy.FindFrom(query, candidates)
	results := make([]*models.Prompt, 0, len(matches))
	for _, m := range matches {
		results = append(results, candidates[m.Index].Clone())
	}
	return results, nil
}

// GetCategories lists the distinct model and application values, sorted.
func (r *Repository) GetCategories() (*models.Categories, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	aiModels := make(map[string]struct{})
	applications := make(map[string]struct{})
	for _, p := range r.records {
		aiModels[p.Category.AIModel] = struct{}{}
		applications[p.Category.Application] = struct{}{}
	}
	return &models.Categories{
		AIModels:     sortedKeys(aiModels),
		Applications: sortedKeys(applications),
	}, nil
}

// GetStatistics summarises the library. TopUsed holds up to five records by
// descending usage count.
func (r *Repository) GetStatistics() (*models.Statistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	stats := &models.Statistics{
		Total:     len(r.records),
		Favorites: len(r.favorites),
		Recent:    len(r.recent),
	}
	all := r.allLocked()
	for _, p := range all {
		if p.IsCustom {
			stats.Custom++
		}
	}
	stats.Default = stats.Total - stats.Custom

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].UsageCount > all[j].UsageCount
	})
	if len(all) > topUsedCount {
		all = all[:topUsedCount]
	}
	stats.TopUsed = all
	return stats, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
