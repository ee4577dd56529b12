package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"crewmatch/apps/backend/internal/config"
)

const (
	testDBName = "crewmatch_test"
	testDBUser = "test"
	testDBPass = "test"
)

type IntegrationSuite struct {
	T        *testing.T
	DB       *sql.DB
	Weaviate *weaviate.Client
	NSQ      *nsq.Producer

	pgHost, pgPort         string
	weaviateAddr           string
	nsqdAddr, nsqdHTTPAddr string
	migrationPath          string

	pgContainer       *postgres.PostgresContainer
	weaviateContainer testcontainers.Container
	nsqContainer      testcontainers.Container
}

func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	return &IntegrationSuite{T: t}
}

// Setup starts Postgres, Weaviate and NSQ.
func (s *IntegrationSuite) Setup() {
	s.SetupPostgres()
	s.setupWeaviate()
	s.setupNSQ()
}

// SetupPostgres starts only a migrated pgvector-enabled Postgres.
func (s *IntegrationSuite) SetupPostgres() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase(testDBName),
		postgres.WithUsername(testDBUser),
		postgres.WithPassword(testDBPass),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(s.T, err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T, err)

	s.DB, err = sql.Open("postgres", connStr)
	require.NoError(s.T, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(s.T, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(s.T, err)
	s.pgHost, s.pgPort = host, port.Port()

	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(b)
	s.migrationPath = fmt.Sprintf("file://%s/../../migrations", basepath)

	m, err := migrate.New(s.migrationPath, connStr)
	require.NoError(s.T, err)
	require.NoError(s.T, m.Up())
}

func (s *IntegrationSuite) setupWeaviate() {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "semitechnologies/weaviate:1.33.6",
		ExposedPorts: []string{"8080/tcp", "50051/tcp"},
		Env: map[string]string{
			"AUTHENTICATION_ANONYMOUS_ACCESS_ENABLED": "true",
			"DEFAULT_VECTORIZER_MODULE":               "none",
			"PERSISTENCE_DATA_PATH":                   "/var/lib/weaviate",
		},
		WaitingFor: wait.ForHTTP("/v1/meta").WithPort("8080/tcp").WithStartupTimeout(60 * time.Second),
	}
	weaviateC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.weaviateContainer = weaviateC

	host, err := weaviateC.Host(ctx)
	require.NoError(s.T, err)
	port, err := weaviateC.MappedPort(ctx, "8080")
	require.NoError(s.T, err)
	s.weaviateAddr = net.JoinHostPort(host, port.Port())

	s.Weaviate, err = weaviate.NewClient(weaviate.Config{Host: s.weaviateAddr, Scheme: "http"})
	require.NoError(s.T, err)
}

func (s *IntegrationSuite) setupNSQ() {
	ctx := context.Background()
	nsqReq := testcontainers.ContainerRequest{
		Image:        "nsqio/nsq:v1.3.0",
		ExposedPorts: []string{"4150/tcp", "4151/tcp"},
		Cmd:          []string{"/nsqd", "--broadcast-address=localhost"},
		WaitingFor:   wait.ForLog("TCP: listening on").WithStartupTimeout(60 * time.Second),
	}
	nsqC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: nsqReq,
		Started:          true,
	})
	require.NoError(s.T, err)
	s.nsqContainer = nsqC

	host, err := nsqC.Host(ctx)
	require.NoError(s.T, err)
	tcpPort, err := nsqC.MappedPort(ctx, "4150")
	require.NoError(s.T, err)
	httpPort, err := nsqC.MappedPort(ctx, "4151")
	require.NoError(s.T, err)
	s.nsqdAddr = net.JoinHostPort(host, tcpPort.Port())
	s.nsqdHTTPAddr = net.JoinHostPort(host, httpPort.Port())

	s.NSQ, err = nsq.NewProducer(s.nsqdAddr, nsq.NewConfig())
	require.NoError(s.T, err)
}

// GetAppConfig returns a configuration pointing at the suite's containers.
// Provider keys are placeholders; nothing in the smoke path calls them.
func (s *IntegrationSuite) GetAppConfig() *config.Config {
	port, err := strconv.Atoi(s.pgPort)
	require.NoError(s.T, err)
	return &config.Config{
		DBHost:                     s.pgHost,
		DBPort:                     port,
		DBUser:                     testDBUser,
		DBPass:                     testDBPass,
		DBName:                     testDBName,
		MigrationPath:              s.migrationPath,
		VectorBackend:              config.VectorBackendPgvector,
		WeaviateHost:               s.weaviateAddr,
		WeaviateScheme:             "http",
		NSQDHost:                   s.nsqdAddr,
		NSQDHTTP:                   s.nsqdHTTPAddr,
		NSQLookupd:                 "",
		NSQMaxMsgSize:              1048576,
		EnableAPI:                  true,
		EnableEmbeddingWorker:      true,
		EmbeddingProvider:          config.ProviderGemini,
		EmbeddingDimensions:        1536,
		LLMProvider:                config.ProviderGemini,
		GeminiAPIKey:               "test-key",
		ProviderTimeoutSeconds:     5,
		WorkerBatchSize:            5,
		WorkerPollIntervalSeconds:  1,
		WorkerConcurrency:          1,
		QueueMaxAttempts:           3,
		QueueRetryBackoffSeconds:   1,
		QueueStaleAfterMinutes:     15,
		ServerPort:                 0,
		MatchLogPath:               filepath.Join(s.T.TempDir(), "match.log"),
		BootstrapRetryAttempts:     5,
		BootstrapRetryDelaySeconds: 1,
	}
}

func (s *IntegrationSuite) Teardown() {
	ctx := context.Background()
	if s.DB != nil {
		s.DB.Close()
	}
	if s.NSQ != nil {
		s.NSQ.Stop()
	}
	if s.pgContainer != nil {
		s.pgContainer.Terminate(ctx)
	}
	if s.weaviateContainer != nil {
		s.weaviateContainer.Terminate(ctx)
	}
	if s.nsqContainer != nil {
		s.nsqContainer.Terminate(ctx)
	}
}
