package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"crewmatch/apps/backend/internal/app"
	"crewmatch/apps/backend/internal/config"
	"crewmatch/apps/backend/internal/testutils"
)

func TestBootstrap_Resilience_DBDown(t *testing.T) {
	cfg := &config.Config{
		DBHost:                     "localhost",
		DBPort:                     54322,
		DBUser:                     "test",
		DBPass:                     "test",
		DBName:                     "test",
		BootstrapRetryAttempts:     1,
		BootstrapRetryDelaySeconds: 0,
	}

	start := time.Now()
	deps, err := app.Bootstrap(context.Background(), cfg)

	assert.Error(t, err)
	assert.Nil(t, deps)
	assert.Contains(t, err.Error(), "failed to ping db")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBootstrap_Resilience_WeaviateDown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t)
	suite.SetupPostgres()
	defer suite.Teardown()

	cfg := suite.GetAppConfig()
	cfg.VectorBackend = config.VectorBackendWeaviate
	cfg.WeaviateHost = "localhost:54322"
	cfg.BootstrapRetryAttempts = 2
	cfg.BootstrapRetryDelaySeconds = 1

	start := time.Now()
	deps, err := app.Bootstrap(context.Background(), cfg)

	assert.Error(t, err)
	assert.Nil(t, deps)
	assert.Contains(t, err.Error(), "weaviate schema error")
	assert.Greater(t, time.Since(start), time.Second)
}
