//go:build integration
// +build integration

package di

import (
	"context"
	"os"
	"testing"
	"time"

	"noisewatch/internal/config"
	"noisewatch/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ServiceContainerIntegrationTestSuite runs the container against a real PostgreSQL database
type ServiceContainerIntegrationTestSuite struct {
	suite.Suite
	Config    *config.Config
	Logger    *observability.Logger
	Container ServiceContainerInterface
}

func TestServiceContainerIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceContainerIntegrationTestSuite))
}

func (suite *ServiceContainerIntegrationTestSuite) SetupSuite() {
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		suite.T().Skip("TEST_DATABASE_URL not set")
	}

	cfg := &config.Config{IsTest: true}
	cfg.Database.URL = databaseURL
	cfg.Storage.Driver = config.StorageDriverPostgres
	cfg.Server.JWTSecret = "integration-secret"
	cfg.Server.AdminUsername = "admin"
	cfg.Server.AdminEmail = "admin@noisewatch.test"
	cfg.Server.AdminPassword = "integration-password"
	cfg.Media.LocalDir = suite.T().TempDir()
	suite.Config = cfg
	suite.Logger = observability.NewNopLogger()

	suite.Container = NewServiceContainer(cfg, suite.Logger)
	require.NoError(suite.T(), suite.Container.Initialize(context.Background()))
}

func (suite *ServiceContainerIntegrationTestSuite) TearDownSuite() {
	if suite.Container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = suite.Container.Shutdown(ctx)
	}
}

func (suite *ServiceContainerIntegrationTestSuite) TestReady() {
	assert.True(suite.T(), suite.Container.IsReady())
	assert.NotNil(suite.T(), suite.Container.GetDatabase())
}

func (suite *ServiceContainerIntegrationTestSuite) TestEnsureAdminUser_Idempotent() {
	ctx := context.Background()
	require.NoError(suite.T(), suite.Container.EnsureAdminUser(ctx))
	require.NoError(suite.T(), suite.Container.EnsureAdminUser(ctx))

	userService, err := suite.Container.GetUserService()
	require.NoError(suite.T(), err)
	admin, err := userService.Authenticate(ctx, suite.Config.Server.AdminEmail, suite.Config.Server.AdminPassword)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), admin.IsAdmin())
}
