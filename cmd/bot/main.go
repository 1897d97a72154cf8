package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/sessionvault/internal/bot"
	"github.com/dmitrijs2005/sessionvault/internal/bot/config"
)

func main() {

	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := bot.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
