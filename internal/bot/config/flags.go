package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/sessionvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   database DSN (postgres URL or sqlite file path)
//	-k string   key-derivation passphrase
//	-t string   bot token
//	-l int      idle login lifetime, minutes
//	-m int      2FA password tries per login attempt
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. The login TTL
// is accepted as an integer in minutes and converted to a time.Duration.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-k", "-t", "-l", "-m"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.EncryptionKey, "k", config.EncryptionKey, "encryption passphrase")
	fs.StringVar(&config.BotToken, "t", config.BotToken, "bot token")

	loginTTL := fs.Int("l", int(config.LoginTTL.Minutes()), "login_ttl (in minutes)")
	fs.IntVar(&config.MaxPasswordAttempts, "m", config.MaxPasswordAttempts, "max password attempts")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.LoginTTL = time.Duration(*loginTTL) * time.Minute
}
