package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/sessionvault/internal/bot/config"
	"github.com/dmitrijs2005/sessionvault/internal/bot/login"
	"github.com/dmitrijs2005/sessionvault/internal/bot/media"
	"github.com/dmitrijs2005/sessionvault/internal/bot/query"
	"github.com/dmitrijs2005/sessionvault/internal/cryptox"
	"github.com/dmitrijs2005/sessionvault/internal/logging"
	"github.com/dmitrijs2005/sessionvault/internal/telegram"
	"github.com/dmitrijs2005/sessionvault/internal/telelink"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	storage    *Storage
	registry   *login.Registry
	dispatcher *Dispatcher
	transport  *telegram.Client
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	storage, err := OpenStorage(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	// The key is derived once at startup; user input never reaches it.
	key := cryptox.DeriveKey([]byte(cfg.EncryptionKey), []byte(cfg.EncryptionSalt))
	box, err := cryptox.NewBox(key)
	if err != nil {
		return nil, fmt.Errorf("crypto init error: %w", err)
	}

	dialer, err := telelink.OpenDialer(cfg.APIID, cfg.APIHash)
	if err != nil {
		return nil, fmt.Errorf("protocol client init error: %w", err)
	}

	transport, err := telegram.NewClient(cfg.BotToken, logger)
	if err != nil {
		return nil, fmt.Errorf("transport init error: %w", err)
	}

	registry := login.NewRegistry(logger)
	machine := login.NewMachine(dialer, registry, storage, box, logger, cfg.MaxPasswordAttempts)
	qs := query.NewService(storage.Credentials(), storage.Bans(), storage.Counters(), box, transport, logger)
	ms := media.NewService(storage.Credentials(), box, dialer, logger)
	dispatcher := NewDispatcher(machine, registry, qs, ms, cfg.AdminIDs, logger)

	return &App{
		config:     cfg,
		logger:     logger,
		storage:    storage,
		registry:   registry,
		dispatcher: dispatcher,
		transport:  transport,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.registry.RunSweeper(ctx, app.config.LoginTTL, app.config.LoginSweepInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.transport.Run(ctx, app.dispatcher); err != nil && ctx.Err() == nil {
			app.logger.Error(ctx, "update loop stopped", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.storage.Close(); err != nil {
		app.logger.Error(ctx, "storage close error", "error", err)
	}
	app.logger.Info(ctx, "Shutdown complete")
}
