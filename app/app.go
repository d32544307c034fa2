// Package app wires configuration, storage, the bot and the web server
// into one runnable unit.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/dhanushrs1/HDC-File/bot"
	"github.com/dhanushrs1/HDC-File/config"
	"github.com/dhanushrs1/HDC-File/lib/deeplink"
	"github.com/dhanushrs1/HDC-File/lib/tracer"
	"github.com/dhanushrs1/HDC-File/logger"
	"github.com/dhanushrs1/HDC-File/repository"
	"github.com/dhanushrs1/HDC-File/repository/mongo"
	"github.com/dhanushrs1/HDC-File/services"
	"github.com/dhanushrs1/HDC-File/web"
)

type App struct {
	Bot *bot.TBot
	Web *web.Server
	Log *zap.Logger

	closeDB func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	ctx, span := tracer.Open(ctx, tracer.Named("newApp"))
	defer span.Close()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	log, err := logger.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	log.Info("Initializing the application. The logger is already up.")

	db, closeDB, err := mongo.Dial(ctx, cfg.DatabaseURL, cfg.DatabaseName, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	users := repository.NewUserRepository(db, log)
	files := repository.NewFileRepository(db, log)
	analytics := repository.NewAnalyticsRepository(db, log)
	groupsRepo := repository.NewGroupRepository(db, log)
	settings := repository.NewSettingsRepository(db, log)
	accessLogs := repository.NewAccessLogRepository(db, log)

	for name, ensure := range map[string]func(context.Context) error{
		"file_index":  files.EnsureIndexes,
		"analytics":   analytics.EnsureIndexes,
		"access_logs": accessLogs.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return nil, fmt.Errorf("ensuring %s indexes: %w", name, err)
		}
	}

	groupService, err := services.NewGroupService(ctx, groupsRepo, log)
	if err != nil {
		return nil, fmt.Errorf("loading approved groups: %w", err)
	}

	tBot, err := bot.NewBot(log, cfg, users, files, analytics, settings, groupService)
	if err != nil {
		return nil, fmt.Errorf("initializing bot: %w", err)
	}

	// From here on, error-level entries land in the owner's chat too.
	// The bot's own handlers already report through OnError and the
	// recover middleware, this catches the rest of the process.
	log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, logger.NewTelegramCore(zapcore.ErrorLevel, tBot.Bot, cfg.OwnerID))
	}))

	webServer := web.NewServer(
		":"+cfg.Port,
		files, accessLogs, users, analytics,
		deeplink.NewCodec(cfg.ChannelID),
		tBot.Bot.Me.Username, cfg.ChannelID, cfg.DashboardKey, log)

	return &App{
		Bot:     tBot,
		Web:     webServer,
		Log:     log,
		closeDB: closeDB,
	}, nil
}

// Run serves the bot and the web endpoints until ctx is cancelled or
// either of them fails.
func (a *App) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return a.Bot.Start(ctx) })
	group.Go(func() error { return a.Web.Run(ctx) })
	return group.Wait()
}

func (a *App) Close(ctx context.Context) {
	if err := a.closeDB(ctx); err != nil {
		a.Log.Error("closing MongoDB failed", zap.Error(err))
	}
	_ = a.Log.Sync()
}
