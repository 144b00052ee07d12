package repository

import (
	"context"
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/models"
	"github.com/dpshade/prompt-library/internal/storage"
)

// ImportOptions tunes how import payloads are parsed.
type ImportOptions struct {
	// Lenient repairs malformed JSON (trailing commas, single quotes, missing
	// brackets) before parsing.
	Lenient bool
}

// Import parses data as a library document and merges its records. data may
// be a string, []byte, json.RawMessage, *models.Document, models.Document or
// a decoded JSON object. Records whose id already exists are replaced when
// strategy is "overwrite" and skipped for any other strategy. Recent and
// favorite lists are not imported.
func (r *Repository) Import(ctx context.Context, data any, strategy string, opts ImportOptions) (*models.ImportResult, error) {
	doc, err := parseImport(data, opts)
	if err != nil {
		return nil, err
	}
	return r.ImportDocument(ctx, doc, strategy)
}

// ImportDocument merges an already parsed document. See Import.
func (r *Repository) ImportDocument(ctx context.Context, doc *models.Document, strategy string) (*models.ImportResult, error) {
	if doc == nil {
		return nil, apperrors.InvalidImportDataError(fmt.Errorf("no document"))
	}
	for i, p := range doc.Prompts {
		if p == nil || p.ID == "" {
			return nil, apperrors.InvalidImportDataError(fmt.Errorf("prompt %d has no id", i))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	now := r.clock()
	result := &models.ImportResult{}
	for _, incoming := range doc.Prompts {
		p := normalize(incoming.Clone(), now)
		if _, exists := r.records[p.ID]; exists {
			if strategy == models.MergeOverwrite {
				r.putLocked(p)
				result.Updated++
			} else {
				result.Skipped++
			}
			continue
		}
		r.putLocked(p)
		result.Imported++
	}
	result.Total = result.Imported + result.Skipped + result.Updated

	r.persistLocked(ctx, "import")
	r.logger.Info("imported prompts",
		"imported", result.Imported,
		"updated", result.Updated,
		"skipped", result.Skipped)
	return result, nil
}

func parseImport(data any, opts ImportOptions) (*models.Document, error) {
	var raw []byte
	switch v := data.(type) {
	case nil:
		return nil, apperrors.InvalidImportDataError(fmt.Errorf("no data"))
	case *models.Document:
		return v, nil
	case models.Document:
		return &v, nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, apperrors.InvalidImportDataError(err)
		}
		raw = encoded
	}

	doc, err := storage.DecodeDocument(raw)
	if err == nil {
		return doc, nil
	}
	if !opts.Lenient || json.Valid(raw) {
		return nil, apperrors.InvalidImportDataError(err)
	}

	repaired, repairErr := jsonrepair.RepairJSON(string(raw))
	if repairErr != nil {
		return nil, apperrors.InvalidImportDataError(repairErr)
	}
	doc, err = storage.DecodeDocument([]byte(repaired))
	if err != nil {
		return nil, apperrors.InvalidImportDataError(err).WithDetails("input was repaired before parsing")
	}
	return doc, nil
}
