package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", OutputPaths: []string{"stdout"}})
	assert.Error(t, err)
}

func TestNewBuildsLogger(t *testing.T) {
	logger, err := New(Config{Level: "debug", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.NotNil(t, logger.Logger)
}

func TestPlaceAndWorkerFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := Wrap(zap.New(core))

	logger.Worker(2).Place("lib").Info("loaded")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "lib", fields["place"])
	assert.Equal(t, int64(2), fields["worker"])
}

func TestNopClose(t *testing.T) {
	assert.NoError(t, NewNop().Close())
	assert.NotNil(t, Wrap(nil).Logger)
}
