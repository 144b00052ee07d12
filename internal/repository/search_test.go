package repository

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

func TestSearchRanking(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	a := prompt("A", 5, day(1))
	aUsed := day(10)
	a.LastUsed = &aUsed
	b := prompt("B", 5, day(1))
	bUsed := day(20)
	b.LastUsed = &bUsed
	c := prompt("C", 1, day(30))

	r, _ := openDocument(t, a, c, b)

	results, err := r.Search("", models.Filters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, ids(results))
}

func TestSearchRankingFallsBackToCreation(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	older := prompt("older", 2, day(1))
	used := day(25)
	older.LastUsed = &used
	newer := prompt("newer", 2, day(5))

	r, _ := openDocument(t, older, newer)
	results, err := r.Search("", models.Filters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older"}, ids(results), "one side has no lastUsed")
}

func TestSearchFilterConjunction(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	claude := prompt("claude", 0, created)
	claude.Category.AIModel = "Claude"
	claude.Content = "help me debug this"
	chatgpt := prompt("chatgpt", 0, created)
	chatgpt.Category.AIModel = "ChatGPT"
	chatgpt.Content = "Debug the following"

	r, _ := openDocument(t, claude, chatgpt)

	results, err := r.Search("debug", models.Filters{AIModel: "Claude"})
	require.NoError(t, err)
	assert.Equal(t, []string{"claude"}, ids(results))

	results, err = r.Search("DEBUG", models.Filters{})
	require.NoError(t, err)
	assert.Len(t, results, 2, "query is case-insensitive")
}

func TestSearchFilters(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p1 := prompt("p1", 0, created)
	p1.Tags = []string{"go", "review"}
	p1.Category.Application = "Coding"
	p2 := prompt("p2", 0, created)
	p2.Tags = []string{"writing"}
	p2.IsCustom = false
	p3 := prompt("p3", 0, created)
	p3.Tags = []string{"go", "archive"}

	r, _ := openDocument(t, p1, p2, p3)

	custom := true
	tests := []struct {
		name    string
		query   string
		filters models.Filters
		want    []string
	}{
		{"all", "", models.Filters{}, []string{"p1", "p2", "p3"}},
		{"any tag", "", models.Filters{Tags: []string{"writing", "review"}}, []string{"p1", "p2"}},
		{"custom only", "", models.Filters{IsCustom: &custom}, []string{"p1", "p3"}},
		{"application", "", models.Filters{Application: "Coding"}, []string{"p1"}},
		{"tag text matches", "archive", models.Filters{}, []string{"p3"}},
		{"tag expression", "", models.Filters{TagExpr: models.AndExpr(models.TagExpr("go"), models.NotExpr(models.TagExpr("archive")))}, []string{"p1"}},
		{"no match", "zebra", models.Filters{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := r.Search(tt.query, tt.filters)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, results)
				return
			}
			assert.ElementsMatch(t, tt.want, ids(results))
		})
	}
}

func TestFuzzySearch(t *testing.T) {
	r := openWith(t, &memStore{}, nil)

	results, err := r.FuzzySearch("debug helper", models.Filters{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, ids(results), "default-debug-helper")

	none, err := r.FuzzySearch("zzzzqqq", models.Filters{})
	require.NoError(t, err)
	assert.Empty(t, none)

	narrowed, err := r.FuzzySearch("analysis", models.Filters{AIModel: "Claude"})
	require.NoError(t, err)
	require.NotEmpty(t, narrowed)
	for _, p := range narrowed {
		assert.Equal(t, "Claude", p.Category.AIModel)
	}

	all, err := r.FuzzySearch("  ", models.Filters{})
	require.NoError(t, err)
	assert.Len(t, all, 17)
}

func TestGetCategoriesAndStatistics(t *testing.T) {
	r := openWith(t, &memStore{}, nil)

	cats, err := r.GetCategories()
	require.NoError(t, err)
	assert.Equal(t, []string{"ChatGPT", "Claude", "Gemini"}, cats.AIModels)
	assert.Equal(t, []string{"Analysis", "Business", "Coding", "Creative", "Writing"}, cats.Applications)

	_, err = r.Create(ctx, models.NewPrompt{Title: "custom"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, r.MarkUsed(ctx, "default-unit-tests"))
	}
	require.NoError(t, r.MarkUsed(ctx, "default-email-composer"))
	_, err = r.ToggleFavorite(ctx, "default-email-composer")
	require.NoError(t, err)

	stats, err := r.GetStatistics()
	require.NoError(t, err)
	assert.Equal(t, 18, stats.Total)
	assert.Equal(t, 1, stats.Custom)
	assert.Equal(t, 17, stats.Default)
	assert.Equal(t, 1, stats.Favorites)
	assert.Equal(t, 2, stats.Recent)
	require.Len(t, stats.TopUsed, 5)
	assert.Equal(t, "default-unit-tests", stats.TopUsed[0].ID)
	assert.Equal(t, "default-email-composer", stats.TopUsed[1].ID)

	cats, err = r.GetCategories()
	require.NoError(t, err)
	assert.Contains(t, cats.AIModels, "Other")
}

func TestExportCSV(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := prompt("q", 0, created)
	p.Title = `Say "hi"`
	p.Description = "greets"
	p.Category = models.Category{AIModel: "Claude", Application: "Chat"}
	p.Tags = []string{"a", "b"}
	p.Content = "line1\nline2"
	r, _ := openDocument(t, p)

	out, err := r.Export("csv")
	require.NoError(t, err)
	assert.Equal(t,
		"Title,Description,AI Model,Application,Tags,Content\n"+
			`"Say ""hi""","greets","Claude","Chat","a; b","line1`+"\n"+`line2"`,
		out)
}

func TestExportJSONRoundTrips(t *testing.T) {
	r := openWith(t, &memStore{}, nil)
	require.NoError(t, r.MarkUsed(ctx, "default-code-review"))

	out, err := r.Export("JSON")
	require.NoError(t, err)
	assert.Contains(t, out, "\n  \"prompts\": [", "pretty printed")

	var doc models.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, models.CurrentDocumentVersion, doc.Version)
	assert.Len(t, doc.Prompts, 17)
	assert.Equal(t, []string{"default-code-review"}, doc.RecentPrompts)
}

func TestExportMarkdownStructure(t *testing.T) {
	r := openWith(t, &memStore{}, nil)
	out, err := r.Export("markdown")
	require.NoError(t, err)

	source := []byte(out)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	headings := map[int][]string{}
	fences := 0
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			headings[node.Level] = append(headings[node.Level], string(node.Text(source)))
		case *ast.FencedCodeBlock:
			fences++
		}
		return ast.WalkContinue, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"AI Prompt Library"}, headings[1])
	assert.Equal(t, []string{"ChatGPT", "Claude", "Gemini"}, headings[2], "models in first-seen order")
	assert.Len(t, headings[3], 17)
	assert.Equal(t, 17, fences)
	assert.Contains(t, out, "Exported on ")
	assert.Contains(t, out, "**Application:** Coding")
}

func TestExportUnsupportedFormat(t *testing.T) {
	r := openWith(t, &memStore{}, nil)
	_, err := r.Export("xml")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnsupportedFormat))
}

func TestImportMergeStrategies(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := prompt("p1", 0, created)
	existing.Title = "Old"

	incoming := `{"version":"1.0","prompts":[{"id":"p1","title":"New"},{"id":"p2","title":"Fresh"}]}`

	t.Run("skip", func(t *testing.T) {
		r, _ := openDocument(t, existing)
		res, err := r.Import(ctx, incoming, models.MergeSkip, ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, models.ImportResult{Imported: 1, Skipped: 1, Total: 2}, *res)

		p, _ := r.Get("p1")
		assert.Equal(t, "Old", p.Title)
		p2, _ := r.Get("p2")
		require.NotNil(t, p2)
		assert.Equal(t, "Fresh", p2.Title)
	})

	t.Run("overwrite", func(t *testing.T) {
		r, store := openDocument(t, existing)
		saves := store.saves
		res, err := r.Import(ctx, []byte(incoming), models.MergeOverwrite, ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, models.ImportResult{Imported: 1, Updated: 1, Total: 2}, *res)
		assert.Equal(t, saves+1, store.saves, "one save for the whole import")

		p, _ := r.Get("p1")
		assert.Equal(t, "New", p.Title)
	})

	t.Run("unknown strategy skips", func(t *testing.T) {
		r, _ := openDocument(t, existing)
		res, err := r.Import(ctx, incoming, "merge", ImportOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Skipped)
	})
}

func TestImportAcceptsParsedStructures(t *testing.T) {
	r, _ := openDocument(t)

	res, err := r.Import(ctx, map[string]any{
		"prompts": []any{map[string]any{"id": "m1", "title": "From map"}},
	}, "", ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	res, err = r.Import(ctx, &models.Document{Prompts: []*models.Prompt{{ID: "d1"}}}, "", ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	d1, _ := r.Get("d1")
	require.NotNil(t, d1)
	assert.Equal(t, models.DefaultCategory(), d1.Category)
	assert.Equal(t, []string{}, d1.Tags)
	assert.False(t, d1.DateModified.Before(d1.DateCreated))
}

func TestImportDoesNotTouchDerivedSets(t *testing.T) {
	r, _ := openDocument(t)
	_, err := r.Import(ctx, `{"prompts":[{"id":"a"}],"recentPrompts":["a"],"favorites":["a"]}`, "", ImportOptions{})
	require.NoError(t, err)

	recent, _ := r.GetRecent()
	favs, _ := r.GetFavorites()
	assert.Empty(t, recent)
	assert.Empty(t, favs)
}

func TestImportInvalidData(t *testing.T) {
	r, _ := openDocument(t)
	for _, data := range []any{nil, "not json", `{"prompts": 3}`, `{"prompts":[{"title":"no id"}]}`, &models.Document{Prompts: []*models.Prompt{{Title: "x"}}}} {
		_, err := r.Import(ctx, data, "", ImportOptions{})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidImportData), "%v", data)
	}
}

func TestImportLenientRepairsJSON(t *testing.T) {
	broken := `{"prompts": [{"id": "r1", "title": "Repaired",},]`

	r, _ := openDocument(t)
	_, err := r.Import(ctx, broken, "", ImportOptions{})
	require.Error(t, err)

	res, err := r.Import(ctx, broken, "", ImportOptions{Lenient: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	p, _ := r.Get("r1")
	require.NotNil(t, p)
	assert.Equal(t, "Repaired", p.Title)
	assert.True(t, strings.HasPrefix(p.ID, "r"))
}
