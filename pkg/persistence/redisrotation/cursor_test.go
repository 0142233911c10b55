package redisrotation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForLog("Ready to accept connections"),
				wait.ForListeningPort("6379/tcp"),
			).WithDeadline(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s/0", endpoint)
}

func TestCursor_Next(t *testing.T) {
	url := setupRedis(t)

	cursor, err := New(t.Context(), slog.Default(), url)
	require.NoError(t, err)

	defer func() {
		assert.NoError(t, cursor.Close())
	}()

	require.NoError(t, cursor.HealthCheck(t.Context()))

	for want := range int64(3) {
		got, err := cursor.Next(t.Context(), "step-a")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := cursor.Next(t.Context(), "step-b")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestCursor_ConcurrentInstances(t *testing.T) {
	url := setupRedis(t)

	const instances, callsEach = 4, 25

	results := make(chan int64, instances*callsEach)

	var wg sync.WaitGroup

	for range instances {
		cursor, err := New(t.Context(), slog.Default(), url)
		require.NoError(t, err)

		t.Cleanup(func() { _ = cursor.Close() })

		wg.Add(1)

		go func() {
			defer wg.Done()

			for range callsEach {
				value, err := cursor.Next(t.Context(), "shared-step")
				assert.NoError(t, err)

				results <- value
			}
		}()
	}

	wg.Wait()
	close(results)

	seen := map[int64]bool{}
	for value := range results {
		seen[value] = true
	}

	assert.Len(t, seen, instances*callsEach)
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(t.Context(), slog.Default(), "not-a-url")
	assert.Error(t, err)
}
