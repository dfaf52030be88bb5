package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slidethumb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dir", cfg.Store.Kind)
	assert.Equal(t, Bounds{Width: 384, Height: 280}, cfg.Presets["list"])
	assert.Equal(t, Bounds{Width: 256, Height: 256}, cfg.Presets["gallery"])
	assert.Equal(t, Bounds{Width: 640, Height: 360}, cfg.Presets["chat"])
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  kind: sqlite
  sqlite: /var/lib/slidethumb/versions.db
presets:
  list:
    width: 320
    height: 200
template:
  brand:
    name: Acme
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Kind)
	assert.Equal(t, Bounds{Width: 320, Height: 200}, cfg.Presets["list"])
	assert.Equal(t, Bounds{Width: 640, Height: 360}, cfg.Presets["chat"])
	assert.Equal(t, ":8080", cfg.Server.Addr)
	brand, ok := cfg.Template["brand"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Acme", brand["name"])
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "stroe:\n  kind: dir\n"))
	assert.Error(t, err)
}

func TestLoadValidates(t *testing.T) {
	_, err := Load(writeConfig(t, "store:\n  kind: s3\n"))
	assert.ErrorContains(t, err, "store.kind")

	_, err = Load(writeConfig(t, "presets:\n  tiny:\n    width: 0\n    height: 10\n"))
	assert.ErrorContains(t, err, "tiny")
}

func TestFlagsOverrideFile(t *testing.T) {
	cfg := Default()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--addr", ":9000"}))

	path := writeConfig(t, "server:\n  addr: \":7000\"\nstore:\n  dir: /srv/decks\n")
	require.NoError(t, cfg.LoadFile(path, flags))
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "/srv/decks", cfg.Store.Dir)
}
