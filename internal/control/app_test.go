package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/opsbridge/internal/core/config"
	"github.com/vietddude/opsbridge/internal/core/domain"
	"github.com/vietddude/opsbridge/internal/testutil"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(`
sessions:
  ttl: 10m
  default_alias: dev
instances:
  - alias: dev
    url: https://dev.example.com
    username: admin
    password: secret
`))
	require.NoError(t, err)
	cfg.Server.Port = 0 // random port
	return cfg
}

func TestApp_MemoryWiring(t *testing.T) {
	ctx := context.Background()
	factory := &testutil.MockFactory{}

	app, err := NewApp(ctx, testConfig(t), WithFactory(factory.Build))
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "dev", app.Sessions().DefaultAlias())

	result, err := app.Executor().Create(ctx, "", []domain.CreateOperation{
		{Target: "incident", Payload: map[string]any{"short_description": "x"}, SaveAs: "inc"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	runs, err := app.Runs().ListRecent(ctx, []string{"dev"}, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.BatchKindCreate, runs[0].Kind)
	assert.Equal(t, result.GeneratedIDs, runs[0].GeneratedIDs)

	require.Equal(t, 1, factory.Built())
	assert.Equal(t, "dev", factory.Clients[0].Alias())
}

func TestApp_NoCredentialStore(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t), WithFactory((&testutil.MockFactory{}).Build))
	require.NoError(t, err)
	defer app.Close()

	_, err = app.CredentialStore()
	assert.ErrorIs(t, err, ErrNoCredentialStore)
}

func TestApp_Lifecycle(t *testing.T) {
	factory := &testutil.MockFactory{}
	app, err := NewApp(context.Background(), testConfig(t), WithFactory(factory.Build))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, app.Start(ctx))
	_, err = app.Sessions().Resolve(ctx, "dev")
	require.NoError(t, err)

	require.NoError(t, app.Stop(ctx))
	assert.Equal(t, 0, app.Sessions().Len())
	assert.True(t, factory.Clients[0].Closed)
}
