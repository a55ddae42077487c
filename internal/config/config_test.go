package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/statetree/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Snapshot.Indent)
	assert.Equal(t, "statetree", cfg.Metrics.Namespace)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
schema: schemas/profile.yaml
format: cbor
log:
  level: debug
snapshot:
  digest: true
  compress: true
metrics:
  enabled: true
  namespace: profiles
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "cbor", cfg.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "absent keys keep defaults")
	assert.True(t, cfg.Snapshot.Digest)
	assert.True(t, cfg.Snapshot.Compress)
	assert.True(t, cfg.Snapshot.Indent)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "profiles", cfg.Metrics.Namespace)
	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, filepath.Join(filepath.Dir(path), "schemas", "profile.yaml"), cfg.SchemaPath())
}

func TestLoadFileEmptyValuesGetDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "format: \"\"\nlog:\n  level: \"\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		detail  string
	}{
		{"format", "format: xml\n", "format must be one of: json, cbor"},
		{"log level", "log:\n  level: loud\n", "log.level must be one of: debug, info, warn, error"},
		{"metric name", "metrics:\n  namespace: 9lives\n", "metrics.namespace is not a valid metric name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			require.Error(t, err)

			var se *errors.StateError
			require.True(t, stderrors.As(err, &se))
			assert.Equal(t, "C012", se.Code)
			assert.Contains(t, se.Detail, tt.detail)
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), ConfigFileName))
	var se *errors.StateError
	require.True(t, stderrors.As(err, &se))
	assert.Equal(t, "C010", se.Code)
	assert.True(t, stderrors.Is(err, os.ErrNotExist))

	_, err = LoadFile(writeConfig(t, "log: [unclosed"))
	require.True(t, stderrors.As(err, &se))
	assert.Equal(t, "C011", se.Code)
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, New(), cfg)

	require.NoError(t, os.WriteFile(ConfigFileName, []byte("format: cbor\n"), 0o644))
	cfg, err = LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "cbor", cfg.Format)

	_, err = LoadOrDefault("missing.yaml")
	assert.Error(t, err)
}

func TestSaveToRoundTrip(t *testing.T) {
	cfg := New()
	cfg.Format = "cbor"
	cfg.Tracing.Enabled = true

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.SaveTo(path))

	back, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cbor", back.Format)
	assert.True(t, back.Tracing.Enabled)
	assert.Equal(t, path, back.Path())
}
