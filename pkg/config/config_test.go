package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STILLMEM_WORKSPACE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.RecallLimit)
	assert.Equal(t, 100, cfg.WorkingSetCap)
	assert.Equal(t, 5, cfg.DedupeCap)
	assert.InDelta(t, 0.70, cfg.DedupeOverlap, 0.001)
	assert.Equal(t, 12, cfg.MinContentLen)
	assert.Equal(t, 3, cfg.MaxCandidatesPerTurn)
	assert.Equal(t, 60, cfg.DefaultConfidence)
	assert.Equal(t, ".stillmem", filepath.Base(cfg.Workspace))
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STILLMEM_WORKSPACE", "/tmp/stillmem-test")
	t.Setenv("STILLMEM_RECALL_LIMIT", "4")
	t.Setenv("STILLMEM_DEDUPE_OVERLAP", "0.85")
	t.Setenv("STILLMEM_DEFAULT_CONFIDENCE", "75")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/stillmem-test", cfg.Workspace)
	assert.Equal(t, 4, cfg.RecallLimit)
	assert.InDelta(t, 0.85, cfg.DedupeOverlap, 0.001)
	assert.Equal(t, 75, cfg.DefaultConfidence)
}

func TestLoadRejectsMalformedValue(t *testing.T) {
	t.Setenv("STILLMEM_WORKSPACE", "/tmp/stillmem-test")
	t.Setenv("STILLMEM_RECALL_LIMIT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}
