package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `{
	"port": 8080,
	"db_path": "/tmp/test.db",
	"jwt_secret": "secret",
	"ai": {
		"generator": {"provider": "gemini", "model": "gemini-2.0-flash", "data": {"api_key": "k"}},
		"embedder": {"provider": "gemini", "model": "text-embedding-004", "data": {"api_key": "k"}}
	}
}`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 60, cfg.AI.TimeoutSeconds)
	require.Equal(t, "local", cfg.Index.Type)
	require.Equal(t, "local", cfg.FileStore.Type)
	require.Equal(t, 500, cfg.Chunking.Size)
	require.Equal(t, 50, cfg.Chunking.Overlap)
	require.InDelta(t, 0.7, cfg.Analysis.SimilarityThreshold, 1e-9)
	require.Equal(t, 5, cfg.Analysis.TopKeywords)
	require.Equal(t, 60, cfg.Cleanup.GraceMinutes)
	require.Equal(t, 100, cfg.Cleanup.BatchSize)
	require.NotEmpty(t, cfg.Cleanup.CronSpec)
	require.NotEmpty(t, cfg.Media.WorkDir)
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{name: "no port", content: `{"db_path": "x", "jwt_secret": "s", "ai": {"generator": {"provider": "p"}, "embedder": {"provider": "p"}}}`},
		{name: "no db path", content: `{"port": 1, "jwt_secret": "s", "ai": {"generator": {"provider": "p"}, "embedder": {"provider": "p"}}}`},
		{name: "no jwt secret", content: `{"port": 1, "db_path": "x", "ai": {"generator": {"provider": "p"}, "embedder": {"provider": "p"}}}`},
		{name: "no generator", content: `{"port": 1, "db_path": "x", "jwt_secret": "s", "ai": {"embedder": {"provider": "p"}}}`},
		{name: "no embedder", content: `{"port": 1, "db_path": "x", "jwt_secret": "s", "ai": {"generator": {"provider": "p"}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
		})
	}
}

func TestLoad_RejectsBadChunking(t *testing.T) {
	content := `{
		"port": 1, "db_path": "x", "jwt_secret": "s",
		"ai": {"generator": {"provider": "p"}, "embedder": {"provider": "p"}},
		"chunking": {"size": 100, "overlap": 100}
	}`
	_, err := Load(writeConfig(t, content))
	require.Error(t, err)
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "{not json"))
	require.Error(t, err)
}
