package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/regen-insights/internal/notification"
	"github.com/forest-guardian/regen-insights/internal/pipeline"
	"github.com/forest-guardian/regen-insights/internal/storage"
)

func setupRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("ROOT_PATH", root)
	t.Setenv("REGEN_DB_DRIVER", "sqlite")
	t.Setenv("REGEN_DB_DSN", "")
	t.Setenv("REGEN_URL_TTL", "")
	t.Setenv("COPERNICUS_CLIENT_ID", "")
	t.Setenv("COPERNICUS_CLIENT_SECRET", "")
	return root
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--no-banner"}, args...))
	return cmd.ExecuteContext(context.Background())
}

func seedRecords(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))

	records, err := storage.NewSQLiteRecordStore(filepath.Join(root, "data", "regen.db"))
	require.NoError(t, err)
	at := time.Date(2026, 3, 14, 12, 26, 53, 0, time.UTC)
	for i, area := range []string{"north", "south"} {
		require.NoError(t, records.Insert(context.Background(), pipeline.Record{
			ID:          uuid.NewString(),
			AreaName:    area,
			StoragePath: area + "/x.tif",
			MeanNDVI:    0.5,
			RegenScore:  75,
			Insight:     "Healthy",
			ComputedAt:  at.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, records.Close())
}

func TestRecordsExport(t *testing.T) {
	root := setupRoot(t)
	seedRecords(t, root)

	out := filepath.Join(t.TempDir(), "records.csv")
	require.NoError(t, execute(t, "records", "export", "--area", "south", "-o", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], ",south,")
}

func TestRecordsExportNotify(t *testing.T) {
	root := setupRoot(t)
	seedRecords(t, root)

	var got []notification.DiscordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m notification.DiscordMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		got = append(got, m)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("DISCORD_ERROR_NOTIFICATION_URL", "")
	t.Setenv("DISCORD_SUCCESS_NOTIFICATION_URL", srv.URL)

	out := filepath.Join(t.TempDir(), "records.csv")
	require.NoError(t, execute(t, "records", "export", "-o", out, "--notify"))

	require.Len(t, got, 1)
	assert.Equal(t, "Exported 2 records to "+out, got[0].Embeds[0].Description)
}

func TestRecordsListBadSince(t *testing.T) {
	setupRoot(t)
	err := execute(t, "records", "list", "--since", "yesterday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--since")
}

func TestRunNeedsSource(t *testing.T) {
	setupRoot(t)
	err := execute(t, "run", "--area", "north", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--input")
}

func TestRunDownloadNeedsProject(t *testing.T) {
	setupRoot(t)
	err := execute(t, "run", "--area", "north", "--download")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--project")
}

func TestRunRequiresArea(t *testing.T) {
	setupRoot(t)
	require.Error(t, execute(t, "run", "--input", "scene.tif"))
}

func TestAreasMissingProject(t *testing.T) {
	setupRoot(t)
	require.Error(t, execute(t, "areas", "nowhere"))
}
