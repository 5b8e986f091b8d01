package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/stagepipe/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func miniMetabase(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/api/session", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			http.Error(w, "nope", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":"s1"}`))
	})
	r.Get("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"name":"Ventas"}]`))
	})
	r.Get("/api/dashboard/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1,"name":"Ventas"}`))
	})
	r.Get("/api/collection", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	r.Get("/api/card", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestBackup_WritesExport(t *testing.T) {
	srv := miniMetabase(t)
	dir := t.TempDir()

	out, err := runCmd(t, NewBackupCmd(),
		"--url", srv.URL, "--username", "admin", "--password", "secret", "--output-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "export written to")

	matches, err := filepath.Glob(filepath.Join(dir, "metabase_export_*", "dashboards", "1_Ventas.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestBackup_AuthFailure(t *testing.T) {
	srv := miniMetabase(t)
	dir := t.TempDir()

	_, err := runCmd(t, NewBackupCmd(),
		"--url", srv.URL, "--username", "admin", "--password", "wrong", "--output-dir", dir)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBackup_PasswordRequired(t *testing.T) {
	_, err := runCmd(t, NewBackupCmd(), "--username", "admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestEntrypoints(t *testing.T) {
	// cmd/etl, cmd/seed and cmd/backup exit with these.
	for name, run := range map[string]func() ExitCode{
		"etl":    RunETL,
		"seed":   RunSeed,
		"backup": RunBackup,
	} {
		assert.NotNil(t, run, name)
	}
	assert.Equal(t, "etl", NewETLCmd().Name())
}

func TestETL_ResetNeedsConfirmation(t *testing.T) {
	_, err := runCmd(t, NewETLCmd(), "reset")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestETL_RejectsBadID(t *testing.T) {
	_, err := runCmd(t, NewETLCmd(), "transform", "--id", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid id")
}

func TestETL_ExtractNeedsArgument(t *testing.T) {
	_, err := runCmd(t, NewETLCmd(), "extract", "csv")
	require.Error(t, err)
}

func TestSeed_RejectsNegativeCounts(t *testing.T) {
	_, err := runCmd(t, NewSeedCmd(), "--raw=-1")
	require.Error(t, err)
}

func TestPrintCountsAndRuns(t *testing.T) {
	var buf bytes.Buffer
	printCounts(&buf, database.StageCounts{Raw: 12, Processed: 10, PendingTransform: 2})
	assert.Contains(t, buf.String(), "raw_data")
	assert.Contains(t, buf.String(), "12")

	buf.Reset()
	printRuns(&buf, nil)
	assert.Equal(t, "no runs recorded\n", buf.String())

	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	buf.Reset()
	printRuns(&buf, []database.EtlRunMetric{{
		ProcessName:      "load",
		StartTime:        start,
		EndTime:          start.Add(90 * time.Second),
		RecordsProcessed: 7,
		ErrorMessage:     pgtype.Text{String: "timeout", Valid: true},
	}})
	got := buf.String()
	assert.Contains(t, got, "1m30s")
	assert.True(t, strings.Contains(got, "failed: timeout"), got)
}
