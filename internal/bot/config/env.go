package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// parseEnv overlays environment variables onto the Config. Variables that are
// unset or empty leave the current value untouched.
//
//	BOT_TOKEN              bot token
//	API_ID / API_HASH      protocol client application credentials
//	ADMIN_IDS              comma-separated admin user ids
//	ENCRYPTION_KEY         key-derivation passphrase
//	ENCRYPTION_SALT        key-derivation salt
//	DATABASE_DSN           postgres DSN or sqlite file path
//	LOGIN_TTL              idle login lifetime, e.g. "10m"
//	LOGIN_SWEEP_INTERVAL   reaper period, e.g. "1m"
//	MAX_PASSWORD_ATTEMPTS  2FA password tries per attempt
func parseEnv(config *Config) {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		config.BotToken = v
	}
	if v := os.Getenv("API_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			config.APIID = id
		}
	}
	if v := os.Getenv("API_HASH"); v != "" {
		config.APIHash = v
	}
	if v := os.Getenv("ADMIN_IDS"); v != "" {
		config.AdminIDs = parseAdminIDs(v)
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		config.EncryptionKey = v
	}
	if v := os.Getenv("ENCRYPTION_SALT"); v != "" {
		config.EncryptionSalt = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("LOGIN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.LoginTTL = d
		}
	}
	if v := os.Getenv("LOGIN_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.LoginSweepInterval = d
		}
	}
	if v := os.Getenv("MAX_PASSWORD_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.MaxPasswordAttempts = n
		}
	}
}

func parseAdminIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
