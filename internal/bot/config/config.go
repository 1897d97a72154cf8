// Package config handles configuration for the bot, including defaults,
// JSON overlay, environment variables, and command-line flags.
package config

import "time"

// Config holds runtime settings for the bot.
//
// Fields:
//   - BotToken: messaging platform bot token.
//   - APIID / APIHash: application credentials for the account protocol client.
//   - AdminIDs: user ids allowed to use the admin panel.
//   - EncryptionKey / EncryptionSalt: passphrase and salt the at-rest
//     encryption key is derived from. Do not use test defaults in prod.
//   - DatabaseDSN: "postgres://..." for PostgreSQL (pgx), anything else is
//     treated as an SQLite file path.
//   - LoginTTL / LoginSweepInterval: idle lifetime of an in-flight login and
//     how often expired ones are reaped.
//   - MaxPasswordAttempts: 2FA password tries before a login attempt fails.
type Config struct {
	BotToken            string
	APIID               int
	APIHash             string
	AdminIDs            []int64
	EncryptionKey       string
	EncryptionSalt      string
	DatabaseDSN         string
	LoginTTL            time.Duration
	LoginSweepInterval  time.Duration
	MaxPasswordAttempts int
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "sessions.db"
	c.EncryptionKey = "secretKey"
	c.EncryptionSalt = "sessionvault"
	c.LoginTTL = 10 * time.Minute
	c.LoginSweepInterval = 1 * time.Minute
	c.MaxPasswordAttempts = 1
}

// normalize restores safe values for settings an overlay left empty or
// nonsensical. A JSON file that omits a field unmarshals it as zero, and a
// zero sweep interval would panic the registry's ticker.
func (c *Config) normalize() {
	if c.LoginTTL <= 0 {
		c.LoginTTL = 10 * time.Minute
	}
	if c.LoginSweepInterval <= 0 {
		c.LoginSweepInterval = 1 * time.Minute
	}
	if c.MaxPasswordAttempts < 1 {
		c.MaxPasswordAttempts = 1
	}
	if c.DatabaseDSN == "" {
		c.DatabaseDSN = "sessions.db"
	}
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, environment variables, and finally
// command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	cfg.normalize()
	return cfg
}
