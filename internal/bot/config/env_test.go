package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_parseEnv_OverridesSetValues(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("API_ID", "12345")
	t.Setenv("API_HASH", "deadbeef")
	t.Setenv("ADMIN_IDS", "7, 8,bad,9")
	t.Setenv("ENCRYPTION_KEY", "env_key")
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost:5432/vault")
	t.Setenv("LOGIN_TTL", "5m")
	t.Setenv("MAX_PASSWORD_ATTEMPTS", "2")

	var cfg Config
	cfg.LoadDefaults()
	parseEnv(&cfg)

	assert.Equal(t, "123:abc", cfg.BotToken)
	assert.Equal(t, 12345, cfg.APIID)
	assert.Equal(t, "deadbeef", cfg.APIHash)
	assert.Equal(t, []int64{7, 8, 9}, cfg.AdminIDs)
	assert.Equal(t, "env_key", cfg.EncryptionKey)
	assert.Equal(t, "postgres://u:p@localhost:5432/vault", cfg.DatabaseDSN)
	assert.Equal(t, 5*time.Minute, cfg.LoginTTL)
	assert.Equal(t, 2, cfg.MaxPasswordAttempts)
}

func Test_parseEnv_EmptyEnvKeepsDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("LOGIN_TTL", "not a duration")

	var cfg Config
	cfg.LoadDefaults()
	parseEnv(&cfg)

	assert.Equal(t, "", cfg.BotToken)
	assert.Equal(t, "sessions.db", cfg.DatabaseDSN)
	assert.Equal(t, 10*time.Minute, cfg.LoginTTL)
}
