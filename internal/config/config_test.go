package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-very-long-test-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ADMIN_ADDRESSES", "0xAAA, 0xbbb ,")
	t.Setenv("SETTLEMENT_ENABLED", "false")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(500), cfg.Funding.MinGoal)
	assert.Equal(t, int64(50000), cfg.Funding.MaxGoal)
	assert.Equal(t, int64(25), cfg.Funding.MinInvestment)
	assert.Equal(t, 7*24*time.Hour, cfg.Security.TokenTTL)
	assert.Equal(t, "farmlink.eth", cfg.Security.ENSParent)
	assert.Equal(t, []string{"0xAAA", "0xbbb"}, cfg.Security.AdminAddresses)
	assert.False(t, cfg.Settlement.Enabled)

	assert.True(t, cfg.Security.IsAdmin("0xaaa"))
	assert.False(t, cfg.Security.IsAdmin("0xccc"))
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"security":{"jwt_secret":"file-secret-0123456789"},"funding":{"min_goal":100,"max_goal":1000,"min_investment":10,"max_milestones":3}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "file-secret-0123456789", cfg.Security.JWTSecret)
	assert.Equal(t, int64(100), cfg.Funding.MinGoal)
	assert.Equal(t, 3, cfg.Funding.MaxMilestones)
	// untouched sections keep defaults
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadConfigRejectsMissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDatabaseURL(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 1, DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:1/d?sslmode=disable", c.GetDatabaseURL())
}
