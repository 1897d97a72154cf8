package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/sessionvault/internal/flagx"
	"github.com/dmitrijs2005/sessionvault/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. Interval fields use timex.Duration, which parses both string values
// such as "10m" and integer nanoseconds. After unmarshalling, its fields are
// copied into the runtime Config struct.
type JsonConfig struct {
	BotToken            string         `json:"bot_token"`
	APIID               int            `json:"api_id"`
	APIHash             string         `json:"api_hash"`
	AdminIDs            []int64        `json:"admin_ids"`
	EncryptionKey       string         `json:"encryption_key"`
	EncryptionSalt      string         `json:"encryption_salt"`
	DatabaseDSN         string         `json:"database_dsn"`
	LoginTTL            timex.Duration `json:"login_ttl"`
	LoginSweepInterval  timex.Duration `json:"login_sweep_interval"`
	MaxPasswordAttempts int            `json:"max_password_attempts"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. If neither flag is set, no file
// is loaded. An unreadable or invalid file panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.BotToken = c.BotToken
	config.APIID = c.APIID
	config.APIHash = c.APIHash
	config.AdminIDs = c.AdminIDs
	config.EncryptionKey = c.EncryptionKey
	config.EncryptionSalt = c.EncryptionSalt
	config.DatabaseDSN = c.DatabaseDSN
	config.LoginTTL = time.Duration(c.LoginTTL.Duration)
	config.LoginSweepInterval = time.Duration(c.LoginSweepInterval.Duration)
	config.MaxPasswordAttempts = c.MaxPasswordAttempts
}
