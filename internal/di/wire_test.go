package di

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"SessionLens/internal/domain/models"
	"SessionLens/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeed(t *testing.T, days int) string {
	t.Helper()
	var b strings.Builder
	day := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for written := 0; written < days; day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		half := float64(2 + written%5)
		for m := 0; m < 24*60; m += 5 {
			ts := day.Add(time.Duration(m) * time.Minute)
			fmt.Fprintf(&b, "%s;%.2f;%.2f;%.2f;%.2f;%d\n", ts.Format("20060102 150405"), 17000.0, 17000+half, 17000-half, 17000.0, 12)
		}
		written++
	}
	path := filepath.Join(t.TempDir(), "MNQ.txt")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

// Infrastructure is disabled by default, so the graph builds without any
// external service.
func TestInitializeAppRunsOnce(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Log.Level = "error"

	app, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	defer cleanup()

	var out bytes.Buffer
	require.NoError(t, app.RunOnce(context.Background(), writeFeed(t, 22), false, &out))

	var res models.RunResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "MNQ", res.DatasetID)
	assert.NotEmpty(t, res.Daily)
	assert.NotEmpty(t, res.Sessions)

	got, err := app.Pipeline().Get(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Fingerprint, got.Fingerprint)

	err = app.RunOnce(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), false, &out)
	assert.ErrorIs(t, err, models.ErrFileNotFound)
}
