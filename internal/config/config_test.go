package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewmatch/apps/backend/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
	assert.Equal(t, config.ProviderGemini, cfg.EmbeddingProvider)
	assert.Equal(t, 1536, cfg.EmbeddingDimensions)
	assert.Equal(t, 3, cfg.QueueMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, 15*time.Minute, cfg.StaleAfter())
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	content := []byte("DB_HOST=loaded-from-file\nGEMINI_API_KEY=file-key\n")
	err := os.WriteFile(".env", content, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Remove(".env")
		os.Unsetenv("DB_HOST")
		os.Unsetenv("GEMINI_API_KEY")
	})

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DBHost)
	assert.Equal(t, "file-key", cfg.GeminiAPIKey)
}

func TestLoadConfig_MissingProviderKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := config.Load()
	assert.ErrorIs(t, err, config.ErrMissingRequired)
}

func TestLoadConfig_Toggles(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("ENABLE_API", "false")
	t.Setenv("ENABLE_EMBEDDING_WORKER", "true")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("VECTOR_BACKEND", "weaviate")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.EnableAPI)
	assert.True(t, cfg.EnableEmbeddingWorker)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, config.VectorBackendWeaviate, cfg.VectorBackend)
}
