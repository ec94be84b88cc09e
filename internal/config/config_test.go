package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/mailer"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Rewards.PageSize)
	assert.True(t, cfg.Signup.ResetClearsVerification)
	assert.Equal(t, 7*24*time.Hour, cfg.ExpiringWithin())
	assert.Empty(t, cfg.Database.URL)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
signup:
  reset_clears_verification: false
rewards:
  memoize_cursors: true
  expiring_within_days: 14
mail:
  service_id: svc_1
`), 0o644))
	t.Setenv("HTTP_ADDR", ":9100")
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTP.Addr, "env wins over the file")
	assert.Equal(t, "s3cret", cfg.Session.Secret)
	assert.False(t, cfg.Signup.ResetClearsVerification)
	assert.True(t, cfg.Rewards.MemoizeCursors)
	assert.Equal(t, 10, cfg.Rewards.PageSize, "unset keys keep their default")
	assert.Equal(t, 14*24*time.Hour, cfg.ExpiringWithin())
	assert.Equal(t, mailer.DefaultEndpoint, cfg.Mail.Endpoint)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  ttl: soon\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("rewards: [1, 2"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
