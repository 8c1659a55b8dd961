package redisstore_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/leadflow/pkg/workflow"
	"github.com/dukex/leadflow/pkg/workflow/redisstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) (*redisstore.Store, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	store, err := redisstore.NewStore(ctx, slog.Default(), fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
		_ = testcontainers.TerminateContainer(container)

		cancel()
	})

	return store, ctx
}

func TestStore_CurrentDefaultsWhenEmpty(t *testing.T) {
	store, ctx := setupRedis(t)

	def, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, workflow.DefaultDefinition(), def)
}

func TestStore_SaveAssignsVersions(t *testing.T) {
	store, ctx := setupRedis(t)

	def := workflow.Definition{
		Steps: []workflow.StepSpec{
			{ID: workflow.LeadStepID, Kind: workflow.KindLeadSource},
			{ID: "email", Kind: workflow.KindEmailNotifier},
		},
		Edges: []workflow.Edge{{From: "lead", To: "email"}, {From: "email", To: workflow.End}},
		Entry: workflow.LeadStepID,
	}

	first, err := store.Save(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)

	second, err := store.Save(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Version)

	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current.Version)
	assert.Equal(t, def.Steps, current.Steps)
	assert.Equal(t, def.Edges, current.Edges)
}

func TestStore_ConcurrentSavesKeepLatestVersion(t *testing.T) {
	store, ctx := setupRedis(t)

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := store.Save(ctx, workflow.DefaultDefinition())
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), current.Version)
}
