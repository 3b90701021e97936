package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Paths.DownloadRoots = []string{"/downloads"}
		return cfg
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("no download roots", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "download_roots")
	})

	t.Run("empty extracted root", func(t *testing.T) {
		cfg := valid()
		cfg.Paths.ExtractedRoot = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative cpu cores", func(t *testing.T) {
		cfg := valid()
		cfg.Extraction.CPUCores = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := valid()
		cfg.Log.Level = "verbose"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log.level")
	})
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.DownloadRoots = []string{"/data/downloads"}
	cfg.Paths.ExtractedRoot = "/data/extracted"
	cfg.Paths.FinishedRoot = "/data/finished"
	cfg.Extraction.SevenZip = "/usr/bin/7z"
	cfg.Extraction.StallTimeout = 5 * time.Minute
	cfg.Subfolders.IncludeSample = true
	cfg.Demo = true

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Paths, loaded.Paths)
	assert.Equal(t, cfg.Extraction, loaded.Extraction)
	assert.Equal(t, cfg.Subfolders, loaded.Subfolders)
	assert.True(t, loaded.Demo)
}

func TestSubfolderPolicy(t *testing.T) {
	c := SubfoldersConfig{IncludeSample: true, IncludeSub: false, IncludeOther: true}
	p := c.Policy()
	assert.True(t, p.IncludeSample)
	assert.False(t, p.IncludeSubs)
	assert.True(t, p.IncludeOther)
}
