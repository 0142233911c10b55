package cmd

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/dukex/agencyflow/pkg/channels/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := map[string]string{
		"file:///var/lib/agencyflow":      "file",
		"./data":                          "file",
		"postgres://u:p@localhost/flow":   "postgres",
		"postgresql://u:p@localhost/flow": "postgresql",
		"mongodb://localhost":             "mongodb",
	}

	for url, expected := range tests {
		assert.Equal(t, expected, parsePersistenceProvider(url), url)
	}
}

func TestNewPersistence_File(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	root := filepath.Join(t.TempDir(), "nested", "data")

	p, err := NewPersistence(t.Context(), logger, "file://"+root)
	require.NoError(t, err)

	assert.NoError(t, p.HealthCheck(t.Context()))
	assert.DirExists(t, root)
	assert.NoError(t, p.Close(t.Context()))
}

func TestNewPersistence_Unsupported(t *testing.T) {
	_, err := NewPersistence(t.Context(), slog.New(slog.DiscardHandler), "mongodb://localhost")
	require.ErrorIs(t, err, ErrUnsupportedPersistence)
}

func TestWithRedisRotation_Disabled(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	base, err := NewPersistence(t.Context(), logger, t.TempDir())
	require.NoError(t, err)

	p, err := WithRedisRotation(t.Context(), logger, base, "")
	require.NoError(t, err)
	assert.Same(t, base, p)

	_, err = WithRedisRotation(t.Context(), logger, base, "not a url")
	assert.Error(t, err)
}

func TestNewEventBus(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	bus, err := NewEventBus("gochannel", "", logger)
	require.NoError(t, err)
	assert.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", " , ", logger)
	require.ErrorIs(t, err, kafka.ErrNoBrokers)

	_, err = NewEventBus("rabbitmq", "", logger)
	assert.Error(t, err)
}
