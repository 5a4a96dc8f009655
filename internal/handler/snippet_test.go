package handler_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippets/internal/handler"
	"github.com/sakif/snippets/internal/model"
	"github.com/sakif/snippets/internal/repository/memory"
	"github.com/sakif/snippets/internal/server"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	clock   *fakeClock
}

func newTestAPI(t *testing.T, cfg server.Config) *testAPI {
	t.Helper()
	clock := &fakeClock{now: t0}
	store := memory.New(memory.WithClock(clock.Now))
	srv := server.New(cfg, slog.New(slog.DiscardHandler), store)
	return &testAPI{t: t, handler: srv.Handler(), clock: clock}
}

func defaultConfig() server.Config {
	return server.Config{Limits: handler.DefaultLimits(), Likes: true, Edits: true}
}

func (a *testAPI) do(method, target, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) model.View {
	t.Helper()
	var v model.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var e handler.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

func stamp(t time.Time) string {
	return t.UTC().Format(model.TimeFormat)
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreate(t *testing.T) {
	api := newTestAPI(t, defaultConfig())

	rec := api.do(http.MethodPost, "/snippets/", `{"name":"recipe","expires_in":30,"snippet":"1 egg"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	v := decodeView(t, rec)
	assert.Equal(t, model.View{
		Name:      "recipe",
		ExpiresAt: stamp(t0.Add(30 * time.Second)),
		Snippet:   "1 egg",
		URL:       "http://example.com/snippets/recipe",
		Likes:     0,
		Secure:    false,
	}, v)
}

func TestCreate_WithoutTrailingSlash(t *testing.T) {
	api := newTestAPI(t, defaultConfig())

	rec := api.do(http.MethodPost, "/snippets", `{"name":"x","expires_in":1,"snippet":""}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreate_FractionalExpiresIn(t *testing.T) {
	api := newTestAPI(t, defaultConfig())

	rec := api.do(http.MethodPost, "/snippets/", `{"name":"x","expires_in":2.5,"snippet":"s"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	api.clock.Advance(2 * time.Second)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/snippets/x", "").Code)
}

func TestCreate_Secured(t *testing.T) {
	api := newTestAPI(t, defaultConfig())

	rec := api.do(http.MethodPost, "/snippets/", `{"name":"mine","expires_in":30,"snippet":"s","password":"hunter2"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decodeView(t, rec).Secure)
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestCreate_Conflict(t *testing.T) {
	api := newTestAPI(t, defaultConfig())
	body := `{"name":"recipe","expires_in":30,"snippet":"s"}`

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/snippets/", body).Code)

	rec := api.do(http.MethodPost, "/snippets/", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeError(t, rec).Error)
}

func TestCreate_ReplacesExpired(t *testing.T) {
	api := newTestAPI(t, defaultConfig())

	require.Equal(t, http.StatusCreated,
		api.do(http.MethodPost, "/snippets/", `{"name":"n","expires_in":1,"snippet":"old"}`).Code)
	api.clock.Advance(time.Second)

	rec := api.do(http.MethodPost, "/snippets/", `{"name":"n","expires_in":10,"snippet":"new"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "new", decodeView(t, rec).Snippet)
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{name: "not json", body: `{"name":`, wantFields: nil},
		{name: "array body", body: `[1,2]`, wantFields: nil},
		{name: "empty object", body: `{}`, wantFields: []string{"name", "expires_in", "snippet"}},
		{
			name:       "wrong types",
			body:       `{"name":7,"expires_in":"30","snippet":false}`,
			wantFields: []string{"name", "expires_in", "snippet"},
		},
		{name: "zero expires_in", body: `{"name":"a","expires_in":0,"snippet":"s"}`, wantFields: []string{"expires_in"}},
		{name: "negative expires_in", body: `{"name":"a","expires_in":-3,"snippet":"s"}`, wantFields: []string{"expires_in"}},
		{name: "sub-nanosecond expires_in", body: `{"name":"a","expires_in":1e-10,"snippet":"s"}`, wantFields: []string{"expires_in"}},
		{name: "empty name", body: `{"name":"","expires_in":3,"snippet":"s"}`, wantFields: []string{"name"}},
		{name: "null snippet", body: `{"name":"a","expires_in":3,"snippet":null}`, wantFields: []string{"snippet"}},
		{name: "password not a string", body: `{"name":"a","expires_in":3,"snippet":"s","password":1}`, wantFields: []string{"password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, defaultConfig())

			rec := api.do(http.MethodPost, "/snippets/", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			resp := decodeError(t, rec)
			assert.Equal(t, "validation_error", resp.Error)
			assert.NotEmpty(t, resp.Message)

			var got []string
			for _, f := range resp.Fields {
				got = append(got, f.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, got)
		})
	}
}

func TestCreate_BodyTooLarge(t *testing.T) {
	cfg := defaultConfig()
	cfg.Limits.MaxBodyBytes = 64
	api := newTestAPI(t, cfg)

	body := `{"name":"a","expires_in":3,"snippet":"` + strings.Repeat("x", 100) + `"}`
	rec := api.do(http.MethodPost, "/snippets/", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =========================================================================
// LOCATORS
// =========================================================================

func TestLocator_EncodesAndResolves(t *testing.T) {
	names := map[string]string{
		"a&b":          "a%26b",
		"a/b":          "a%2Fb",
		"50% off":      "50%25%20off",
		"what?#frag":   "what%3F%23frag",
		"café":         "caf%C3%A9",
		"plain-name_1": "plain-name_1",
	}

	for name, escaped := range names {
		t.Run(escaped, func(t *testing.T) {
			api := newTestAPI(t, defaultConfig())

			body, err := json.Marshal(map[string]any{"name": name, "expires_in": 60, "snippet": "s"})
			require.NoError(t, err)

			rec := api.do(http.MethodPost, "/snippets/", string(body))
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			url := decodeView(t, rec).URL
			assert.Equal(t, "http://example.com/snippets/"+escaped, url)

			got := api.do(http.MethodGet, url, "")
			require.Equal(t, http.StatusOK, got.Code, got.Body.String())
			assert.Equal(t, name, decodeView(t, got).Name)
		})
	}
}

func TestLocator_PublicURL(t *testing.T) {
	cfg := defaultConfig()
	cfg.PublicURL = "https://snippets.example.org/"
	api := newTestAPI(t, cfg)

	rec := api.do(http.MethodPost, "/snippets/", `{"name":"a b","expires_in":60,"snippet":"s"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "https://snippets.example.org/snippets/a%20b", decodeView(t, rec).URL)
}

func TestLocator_ForwardedProto(t *testing.T) {
	api := newTestAPI(t, defaultConfig())

	req := httptest.NewRequest(http.MethodPost, "/snippets/", strings.NewReader(`{"name":"x","expires_in":60,"snippet":"s"}`))
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "https://example.com/snippets/x", decodeView(t, rec).URL)
}

// =========================================================================
// GET / LIKE
// =========================================================================

func TestLikesExtendLifetime(t *testing.T) {
	api := newTestAPI(t, defaultConfig())

	rec := api.do(http.MethodPost, "/snippets/", `{"name":"recipe","expires_in":30,"snippet":"1 egg"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := t0.Add(30 * time.Second)

	for i := 1; i <= 5; i++ {
		rec := api.do(http.MethodPost, "/snippets/recipe/like/", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		v := decodeView(t, rec)
		assert.Equal(t, i, v.Likes)
		assert.Equal(t, stamp(created.Add(time.Duration(i)*5*time.Second)), v.ExpiresAt)
	}

	rec = api.do(http.MethodGet, "/snippets/recipe/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, 5, v.Likes)
	assert.Equal(t, stamp(created.Add(30*time.Second)), v.ExpiresAt)
}

func TestGet_NotFound(t *testing.T) {
	api := newTestAPI(t, defaultConfig())

	rec := api.do(http.MethodGet, "/snippets/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error)
}

func TestGet_ExpiredAtBoundary(t *testing.T) {
	api := newTestAPI(t, defaultConfig())
	require.Equal(t, http.StatusCreated,
		api.do(http.MethodPost, "/snippets/", `{"name":"brief","expires_in":2,"snippet":"s"}`).Code)

	api.clock.Advance(time.Second)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/snippets/brief", "").Code)

	// The fetch pushed expiry to t0+7s.
	api.clock.Advance(6 * time.Second)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/snippets/brief", "").Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/snippets/brief/like", "").Code)
}

// =========================================================================
// EDIT / DELETE
// =========================================================================

func TestEdit(t *testing.T) {
	api := newTestAPI(t, defaultConfig())
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/snippets/",
		`{"name":"mine","expires_in":30,"snippet":"v1","password":"hunter2"}`).Code)

	t.Run("wrong password", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/snippets/mine/", `{"password":"nope","snippet":"evil"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "forbidden", decodeError(t, rec).Error)
	})

	t.Run("missing password", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/snippets/mine/", `{"snippet":"evil"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("owner edits content and expiry", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/snippets/mine/", `{"password":"hunter2","snippet":"v2","expires_in":100}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		v := decodeView(t, rec)
		assert.Equal(t, "v2", v.Snippet)
		assert.Equal(t, stamp(t0.Add(130*time.Second)), v.ExpiresAt)
		assert.True(t, v.Secure)
	})

	t.Run("owner renames", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/snippets/mine", `{"password":"hunter2","name":"ours"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "ours", decodeView(t, rec).Name)

		assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/snippets/mine", "").Code)
		assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/snippets/ours", "").Code)
	})
}

func TestEdit_UnsecuredSnippetEditableByAnyone(t *testing.T) {
	api := newTestAPI(t, defaultConfig())
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/snippets/",
		`{"name":"open","expires_in":30,"snippet":"s"}`).Code)

	rec := api.do(http.MethodPost, "/snippets/open/", `{"password":"anything","snippet":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decodeView(t, rec)
	assert.Equal(t, "x", v.Snippet)
	assert.False(t, v.Secure)
}

func TestEdit_RenameConflict(t *testing.T) {
	api := newTestAPI(t, defaultConfig())
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/snippets/",
		`{"name":"a","expires_in":30,"snippet":"s","password":"pw"}`).Code)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/snippets/",
		`{"name":"b","expires_in":30,"snippet":"s"}`).Code)

	rec := api.do(http.MethodPost, "/snippets/a/", `{"password":"pw","name":"b"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDelete(t *testing.T) {
	api := newTestAPI(t, defaultConfig())
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/snippets/",
		`{"name":"mine","expires_in":30,"snippet":"s","password":"pw"}`).Code)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, "/snippets/mine/", "").Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, "/snippets/mine/", `{"password":"no"}`).Code)

	rec := api.do(http.MethodDelete, "/snippets/mine/", `{"password":"pw"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/snippets/mine", "").Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/snippets/mine", `{"password":"pw"}`).Code)
}

// =========================================================================
// EXTENSIONS / HEALTH
// =========================================================================

func TestExtensionsDisabled(t *testing.T) {
	api := newTestAPI(t, server.Config{})
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/snippets/",
		`{"name":"x","expires_in":30,"snippet":"s","password":"pw"}`).Code)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/snippets/x/like/", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, api.do(http.MethodPost, "/snippets/x/", `{"password":"pw"}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, api.do(http.MethodDelete, "/snippets/x/", `{"password":"pw"}`).Code)

	// Fetching still works.
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/snippets/x/", "").Code)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, defaultConfig())
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/snippets/",
		`{"name":"x","expires_in":30,"snippet":"s"}`).Code)

	rec := api.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","snippets":1}`, rec.Body.String())
}
