package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGooseLoggerWritesDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := gooseLogger{log: zap.New(core).Sugar()}

	l.Printf("OK   %s (%s)\n", "00001_mod_items.sql", "2ms")
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.DebugLevel, entry.Level)
	assert.Equal(t, "OK   00001_mod_items.sql (2ms)", entry.Message)
}

func TestMigrationsEmbedded(t *testing.T) {
	body, err := migrations.ReadFile("migrations/00001_mod_items.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "-- +goose Up")
	assert.Contains(t, string(body), "CREATE TABLE mod_items")
}
