package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://test.kode-t.ru", cfg.Remote.BaseURL)
	assert.Equal(t, "/recipes.json", cfg.Remote.Path)
	assert.Equal(t, 15*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "larder.db", cfg.Store.Path)
	assert.Equal(t, "name", cfg.View.Sort)
	assert.Equal(t, 10, cfg.View.PlaceholderRows)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 3, cfg.Sync.RetryAttempts)
	assert.False(t, cfg.Sync.RejectConcurrent)
	assert.Equal(t, 2*time.Second, cfg.Sync.TriggerEvery)
}

func TestParseOverrides(t *testing.T) {
	src := `
remote: {
	base_url: "http://localhost:8080"
	timeout:  "1m30s"
}
view: sort: "last_updated"
sync: {
	interval:          "10m"
	reject_concurrent: true
}
`
	cfg, err := Parse([]byte(src), "larder.cue")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Remote.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "last_updated", cfg.View.Sort)
	assert.Equal(t, 10*time.Minute, cfg.Sync.Interval)
	assert.True(t, cfg.Sync.RejectConcurrent)

	// Untouched fields keep defaults.
	assert.Equal(t, "/recipes.json", cfg.Remote.Path)
	assert.Equal(t, 3, cfg.Sync.RetryAttempts)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown top-level key", `colour: "red"`},
		{"unknown nested key", `remote: retries: 3`},
		{"bad sort", `view: sort: "random"`},
		{"negative placeholders", `view: placeholder_rows: -1`},
		{"zero retry attempts", `sync: retry_attempts: 0`},
		{"bad duration", `remote: timeout: "soon"`},
		{"non-http base url", `remote: base_url: "ftp://x"`},
		{"relative path", `remote: path: "recipes.json"`},
		{"syntax error", `remote: {`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "larder.cue")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileRequiresFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.cue"))
	assert.Error(t, err)
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "larder.cue")
	require.NoError(t, os.WriteFile(path, []byte(`store: path: "/tmp/r.db"`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/r.db", cfg.Store.Path)
}
