package db

import (
	"time"

	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := DefaultConnectionConfig()

	assert.Equal(t, 1, cfg.MaxOpenConns)
	assert.Equal(t, 1, cfg.MaxIdleConns)
	assert.Equal(t, time.Duration(0), cfg.ConnMaxLifetime)
	assert.Equal(t, time.Duration(0), cfg.ConnMaxIdleTime)
}

func TestOpen_CreatesFileAndPings(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/nested/scoutengine.db"

	database := Open(path)
	defer func() { _ = database.Close() }()

	assert.NoError(t, database.Ping())
}

func TestOpen_SingleWriterPool(t *testing.T) {
	dir := t.TempDir()
	database := Open(dir + "/scoutengine.db")
	defer func() { _ = database.Close() }()

	var maxOpen int
	assert.NotPanics(t, func() {
		maxOpen = database.Stats().MaxOpenConnections
	})
	assert.Equal(t, 1, maxOpen)
}
