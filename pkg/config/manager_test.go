package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLoadsDefaultsWithoutConfigPath(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)
	assert.Equal(t, "jsonl", m.Get().Store.Backend)
}

func TestManagerLoadsYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memv2.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: sqlite
  path: data/lessons.db
  event_log_path: data/events.jsonl
retrieval:
  pre_run_top_k: 12
  on_error_top_m: 2
  transfer_mode: always
  weights:
    fingerprint_match: 0.40
    tag_overlap: 0.25
    text_similarity: 0.20
    reliability: 0.10
    recency: 0.05
`), 0644))

	m, err := NewManager(WithConfigPath(path))
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 12, cfg.Retrieval.PreRunTopK)
	assert.Equal(t, "always", cfg.Retrieval.TransferMode)
}

func TestManagerRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memv2.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`store: { backend: "not-a-backend", path: x, event_log_path: y }`), 0644))

	_, err := NewManager(WithConfigPath(path))
	require.Error(t, err)
}

func TestManagerSaveRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memv2.yaml")

	require.NoError(t, os.WriteFile(path, []byte{}, 0644))
	m, err := NewManager(WithConfigPath(path))
	require.NoError(t, err)
	require.NoError(t, m.Save())

	m2, err := NewManager(WithConfigPath(path))
	require.NoError(t, err)
	assert.Equal(t, m.Get().Store.Backend, m2.Get().Store.Backend)
}

func TestManagerReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memv2.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: jsonl
  path: data/lessons.jsonl
  event_log_path: data/events.jsonl
`), 0644))

	m, err := NewManager(WithConfigPath(path))
	require.NoError(t, err)
	assert.Equal(t, 10, m.Get().Retrieval.PreRunTopK)

	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: jsonl
  path: data/lessons.jsonl
  event_log_path: data/events.jsonl
retrieval:
  pre_run_top_k: 7
  on_error_top_m: 2
  transfer_mode: auto
  weights:
    fingerprint_match: 0.40
    tag_overlap: 0.25
    text_similarity: 0.20
    reliability: 0.10
    recency: 0.05
`), 0644))

	require.NoError(t, m.Reload())
	assert.Equal(t, 7, m.Get().Retrieval.PreRunTopK)
}
