package tracksim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sim.toml")
	assert.NilError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[server]
listen = "127.0.0.1:9090"
api_key = "secret"
latency = "150ms"

[dataset]
path = "assets.json"
`)

	cfg, err := LoadConfig(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Server.Listen, "127.0.0.1:9090")
	assert.Equal(t, cfg.Server.APIKey, "secret")
	assert.Equal(t, cfg.Server.Latency.Duration(), 150*time.Millisecond)

	// A relative dataset path is resolved against the config directory.
	assert.Equal(t, cfg.Dataset.Path, filepath.Join(filepath.Dir(path), "assets.json"))
}

func TestLoadConfigAbsoluteDatasetPath(t *testing.T) {
	t.Parallel()

	abs := filepath.Join(t.TempDir(), "data", "assets.json")
	path := writeConfig(t, `
[dataset]
path = "`+abs+`"
`)

	cfg, err := LoadConfig(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Dataset.Path, abs)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		assert.ErrorContains(t, err, "read config")
	})

	t.Run("bad toml", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfig(writeConfig(t, `[server`))
		assert.ErrorContains(t, err, "decode config")
	})

	t.Run("bad latency", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfig(writeConfig(t, `
[server]
latency = "fast"
`))
		assert.ErrorContains(t, err, "decode config")
	})

	t.Run("negative latency", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfig(writeConfig(t, `
[server]
latency = "-5s"
`))
		assert.ErrorContains(t, err, "server.latency cannot be negative")
	})
}
