package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/docstore"
)

func TestMigrateSQLiteIsRepeatable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.URL = "sqlite::memory:"
	logger := zap.NewNop().Sugar()

	store, db, err := openStore(cfg, logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, migrate(ctx, store, logger))
	require.NoError(t, migrate(ctx, store, logger))

	_, err = store.Insert(ctx, docstore.CollectionAccounts, map[string]any{"email": "a@example.com", "uid": "u1"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, docstore.CollectionAccounts, map[string]any{"email": "a@example.com", "uid": "u2"})
	assert.ErrorIs(t, err, docstore.ErrDuplicate)
}

func TestOpenStoreFallsBackToMemory(t *testing.T) {
	store, db, err := openStore(config.DefaultConfig(), zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.IsType(t, &docstore.MemoryStore{}, store)
}

func TestBuildHandler(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Rewards.MemoizeCursors = true
	logger := zap.NewNop().Sugar()
	store, _, err := openStore(cfg, logger)
	require.NoError(t, err)
	require.NoError(t, migrate(context.Background(), store, logger))

	h, err := buildHandler(cfg, store, logger)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rewards", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), cfg.HTTP.SignInPath)
}
