package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/pkg/config"
)

func TestNewNotConfigured(t *testing.T) {
	_, err := New(context.Background(), config.Default())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewWithInvalidURL(t *testing.T) {
	cfg := config.Default()
	cfg.Database.URL = "invalid://url"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestCloseNil(t *testing.T) {
	var db *DB
	assert.NotPanics(t, db.Close)
}

func TestHealthCheck(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg := config.Default()
	cfg.Database.URL = url

	db, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := db.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.Greater(t, status.MaxConns, int32(0))

	// Double close should not panic
	db.Close()
	db.Close()
}
