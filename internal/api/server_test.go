package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpshade/prompt-library/internal/models"
	"github.com/dpshade/prompt-library/internal/repository"
	"github.com/dpshade/prompt-library/internal/storage"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *repository.Repository) {
	t.Helper()
	store, err := storage.New(storage.Options{Dir: t.TempDir(), Logger: quietLogger()})
	require.NoError(t, err)
	repo, err := repository.Open(context.Background(), repository.Options{Store: store, Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close(context.Background()) })
	return NewServer(Options{Repository: repo, Logger: quietLogger()}), repo
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestListPrompts(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := do(t, s, http.MethodGet, "/api/v1/prompts", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, env.Success)
	assert.Len(t, decode[[]*models.Prompt](t, env.Data), 17)
}

func TestPromptLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := do(t, s, http.MethodPost, "/api/v1/prompts",
		`{"title":"Go review","content":"Review [CODE]","tags":["go"],"category":{"aiModel":"Claude","application":"Coding"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Prompt](t, env.Data)
	assert.True(t, created.IsCustom)
	assert.Equal(t, "Claude", created.Category.AIModel)

	path := "/api/v1/prompts/" + created.ID

	rec, env = do(t, s, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Go review", decode[models.Prompt](t, env.Data).Title)

	rec, env = do(t, s, http.MethodPatch, path, `{"title":"Go code review"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Go code review", decode[models.Prompt](t, env.Data).Title)

	rec, env = do(t, s, http.MethodPost, path+"/use", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[models.Prompt](t, env.Data).UsageCount)

	rec, env = do(t, s, http.MethodPost, path+"/favorite", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, FavoriteStatus{ID: created.ID, Favorite: true}, decode[FavoriteStatus](t, env.Data))

	_, env = do(t, s, http.MethodGet, "/api/v1/recent", "")
	recent := decode[[]*models.Prompt](t, env.Data)
	require.Len(t, recent, 1)
	assert.Equal(t, created.ID, recent[0].ID)

	_, env = do(t, s, http.MethodGet, "/api/v1/favorites", "")
	assert.Len(t, decode[[]*models.Prompt](t, env.Data), 1)

	rec, _ = do(t, s, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, s, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	_, env = do(t, s, http.MethodGet, "/api/v1/favorites", "")
	assert.Empty(t, decode[[]*models.Prompt](t, env.Data))
}

func TestNotFoundMappings(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodGet, "/api/v1/prompts/missing", ""},
		{http.MethodPatch, "/api/v1/prompts/missing", `{"title":"x"}`},
		{http.MethodDelete, "/api/v1/prompts/missing", ""},
		{http.MethodPost, "/api/v1/prompts/missing/use", ""},
		{http.MethodPost, "/api/v1/prompts/missing/favorite", ""},
		{http.MethodGet, "/api/v1/nothing-here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec, env := do(t, s, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "NOT_FOUND", env.Error.Code)
		})
	}
}

func TestBadRequests(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		wantCode string
	}{
		{"malformed create body", http.MethodPost, "/api/v1/prompts", `{"title":`, "VALIDATION_ERROR"},
		{"usage decrease", http.MethodPatch, "/api/v1/prompts/default-code-review", `{"usageCount":-1}`, "VALIDATION_ERROR"},
		{"bad custom flag", http.MethodGet, "/api/v1/search?custom=maybe", "", "VALIDATION_ERROR"},
		{"bad tag expression", http.MethodGet, "/api/v1/search?tagExpr=a+AND", "", "VALIDATION_ERROR"},
		{"unsupported export", http.MethodGet, "/api/v1/export?format=xml", "", "UNSUPPORTED_FORMAT"},
		{"invalid import", http.MethodPost, "/api/v1/import", `not json`, "INVALID_IMPORT_DATA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, s, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestSearch(t *testing.T) {
	s, _ := newTestServer(t)

	_, env := do(t, s, http.MethodGet, "/api/v1/search?q=code&application=Coding&aiModel=ChatGPT", "")
	results := decode[[]*models.Prompt](t, env.Data)
	require.NotEmpty(t, results)
	for _, p := range results {
		assert.Equal(t, "Coding", p.Category.Application)
		assert.Equal(t, "ChatGPT", p.Category.AIModel)
	}

	_, env = do(t, s, http.MethodGet, "/api/v1/search?q=debug+helper&fuzzy=true", "")
	assert.Contains(t, idsOf(decode[[]*models.Prompt](t, env.Data)), "default-debug-helper")

	_, env = do(t, s, http.MethodGet, "/api/v1/search?custom=true", "")
	assert.Empty(t, decode[[]*models.Prompt](t, env.Data))
}

func TestCategoriesAndStats(t *testing.T) {
	s, _ := newTestServer(t)

	_, env := do(t, s, http.MethodGet, "/api/v1/categories", "")
	cats := decode[models.Categories](t, env.Data)
	assert.Equal(t, []string{"ChatGPT", "Claude", "Gemini"}, cats.AIModels)

	_, env = do(t, s, http.MethodGet, "/api/v1/stats", "")
	stats := decode[models.Statistics](t, env.Data)
	assert.Equal(t, 17, stats.Total)
	assert.Equal(t, 17, stats.Default)
}

func TestExportAndImport(t *testing.T) {
	s, repo := newTestServer(t)

	_, env := do(t, s, http.MethodGet, "/api/v1/export", "")
	payload := decode[ExportPayload](t, env.Data)
	assert.Equal(t, "json", payload.Format)
	assert.Contains(t, payload.Content, `"default-code-review"`)

	_, env = do(t, s, http.MethodGet, "/api/v1/export?format=CSV", "")
	payload = decode[ExportPayload](t, env.Data)
	assert.Equal(t, "csv", payload.Format)
	assert.True(t, strings.HasPrefix(payload.Content, "Title,Description,AI Model,Application,Tags,Content\n"))

	rec, env := do(t, s, http.MethodPost, "/api/v1/import?strategy=overwrite",
		`{"prompts":[{"id":"default-code-review","title":"Replaced"},{"id":"imported-1","title":"New"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ImportResult{Imported: 1, Updated: 1, Total: 2}, decode[models.ImportResult](t, env.Data))

	p, err := repo.Get("default-code-review")
	require.NoError(t, err)
	assert.Equal(t, "Replaced", p.Title)

	rec, env = do(t, s, http.MethodPost, "/api/v1/import?lenient=true", `{"prompts":[{"id":"repaired-1",},]`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[models.ImportResult](t, env.Data).Imported)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	_, env := do(t, s, http.MethodGet, "/api/v1/health", "")
	health := decode[HealthStatus](t, env.Data)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ready", health.State)
	assert.Equal(t, 17, health.Prompts)
}

func TestClosedRepositoryIsUnavailable(t *testing.T) {
	s, repo := newTestServer(t)
	require.NoError(t, repo.Close(context.Background()))

	rec, env := do(t, s, http.MethodGet, "/api/v1/prompts", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NOT_READY", env.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodGet, "/api/v1/prompts", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "prompt_library_http_requests_total")
	assert.Contains(t, body, `path="/api/v1/prompts"`)
	assert.Contains(t, body, "prompt_library_prompts")
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/prompts", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/api/v1/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func idsOf(prompts []*models.Prompt) []string {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = p.ID
	}
	return out
}
