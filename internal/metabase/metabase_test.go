package metabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSession = "session-123"

// fakeMetabase serves a small instance. Dashboard 2 always fails.
func fakeMetabase(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()

	r.Post("/api/session", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["username"] != "admin@example.com" || creds["password"] != "secret" {
			http.Error(w, `{"errors":{"password":"did not match"}}`, http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":"` + testSession + `"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get(sessionHeader) != testSession {
					http.Error(w, "Unauthenticated", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
			})
		})

		r.Get("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"id":1,"name":"Ventas Mensuales"},{"id":2,"name":"Broken"},{"id":3,"name":"a/b: c"}]`))
		})
		r.Get("/api/dashboard/{id}", func(w http.ResponseWriter, r *http.Request) {
			switch chi.URLParam(r, "id") {
			case "2":
				http.Error(w, "boom", http.StatusInternalServerError)
			default:
				w.Write([]byte(`{"id":` + chi.URLParam(r, "id") + `,"name":"Año fiscal","cards":[]}`))
			}
		})
		r.Get("/api/collection", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"id":"root","name":"Our analytics"},{"id":7,"name":"Finance"}]`))
		})
		r.Get("/api/collection/{id}/items", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[{"id":1,"model":"dashboard"}],"total":1}`))
		})
		r.Get("/api/card", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "cards unavailable", http.StatusBadGateway)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newExporter(srv *httptest.Server, outDir, password string) *Exporter {
	return &Exporter{
		Client:    NewClient(srv.URL+"/", WithHTTPClient(srv.Client())),
		Username:  "admin@example.com",
		Password:  password,
		OutputDir: outDir,
		Clock:     clockwork.NewFakeClockAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestLogin(t *testing.T) {
	srv := fakeMetabase(t)

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, c.Login(context.Background(), "admin@example.com", "secret"))
	assert.Equal(t, testSession, c.session)

	bad := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	err := bad.Login(context.Background(), "admin@example.com", "wrong")
	assert.True(t, errors.Is(err, ErrAuth))
}

func TestLogin_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	err := c.Login(context.Background(), "u", "p")
	assert.True(t, errors.Is(err, ErrAuth))
}

func TestExporter_Run(t *testing.T) {
	srv := fakeMetabase(t)
	out := t.TempDir()

	report, err := newExporter(srv, out, "secret").Run(context.Background())
	require.NoError(t, err)

	wantDir := filepath.Join(out, "metabase_export_20260102_030405")
	assert.Equal(t, wantDir, report.Dir)

	assert.Equal(t, CategoryReport{Listed: 3, Exported: 2, Failed: 1, ListOK: true}, report.Categories[Dashboards])
	assert.Equal(t, CategoryReport{Listed: 2, Exported: 2, ListOK: true}, report.Categories[Collections])
	assert.Equal(t, CategoryReport{}, report.Categories[Cards])
	assert.True(t, report.Failed())

	for _, f := range []string{
		"dashboards_list.json",
		"collections_list.json",
		"cards_list.json",
		"dashboards/1_Ventas_Mensuales.json",
		"dashboards/3_a_b__c.json",
		"collections/root_Our_analytics.json",
		"collections/7_Finance.json",
	} {
		assert.FileExists(t, filepath.Join(wantDir, f))
	}
	assert.NoFileExists(t, filepath.Join(wantDir, "dashboards/2_Broken.json"))

	cards, err := os.ReadFile(filepath.Join(wantDir, "cards_list.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(cards))

	dash, err := os.ReadFile(filepath.Join(wantDir, "dashboards/1_Ventas_Mensuales.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"id\": 1,\n  \"name\": \"Año fiscal\",\n  \"cards\": []\n}", string(dash))
}

func TestExporter_AuthFailureWritesNothing(t *testing.T) {
	srv := fakeMetabase(t)
	out := t.TempDir()

	report, err := newExporter(srv, out, "wrong").Run(context.Background())
	assert.True(t, errors.Is(err, ErrAuth))
	assert.Empty(t, report.Dir)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"Sales Overview":     "Sales_Overview",
		"a/b\\c":             "a_b_c",
		`what?"<x>"|*:`:      "what___x_____",
		"../etc/passwd":      "_etc_passwd",
		"Año fiscal":         "Año_fiscal",
		"":                   "unnamed",
		"tab\there\nnewline": "tab_here_newline",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeName(in), in)
	}
	assert.Equal(t, "42_My_Card.json", FileName("42", "My Card"))
}

func TestParseItems(t *testing.T) {
	items, err := parseItems(json.RawMessage(`[{"id":5,"name":"x"},{"name":"no id"},{"id":null},{"id":"root","name":"r"}]`))
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: "5", Name: "x"}, {ID: "root", Name: "r"}}, items)

	_, err = parseItems(json.RawMessage(`{"data":[]}`))
	assert.Error(t, err)
}
