package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/sfallmann/conf-central/cache"
	"github.com/sfallmann/conf-central/config"
	"github.com/sfallmann/conf-central/database"
	"github.com/sfallmann/conf-central/handlers"
	"github.com/sfallmann/conf-central/mail"
	"github.com/sfallmann/conf-central/middleware"
	"github.com/sfallmann/conf-central/router"
	"github.com/sfallmann/conf-central/service"
	"github.com/sfallmann/conf-central/tasks"
)

const closeTimeout = 10 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the YAML configuration file (default $"+config.ConfigEnv+")")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Conference central stopped")
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: colorable.NewColorableStdout(), TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer closeWithTimeout(log, "store", store.Close)

	c, closeCache, err := openCache(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer closeWithTimeout(log, "cache", closeCache)

	dispatcher := tasks.NewDispatcher(tasks.Config{
		Workers:     cfg.Tasks.Workers,
		Buffer:      cfg.Tasks.Buffer,
		MaxAttempts: cfg.Tasks.MaxAttempts,
		Backoff:     cfg.Tasks.Backoff,
	}, log)

	svc := service.New(service.Deps{
		Store:         store,
		Cache:         c,
		Queue:         dispatcher,
		Mailer:        newMailer(cfg.Mail, log),
		Log:           log,
		MaxTxAttempts: cfg.Transaction.MaxAttempts,
	})
	for name, h := range svc.TaskHandlers() {
		dispatcher.Handle(name, h)
	}

	signingKey := cfg.Auth.SigningKey
	if signingKey == "" {
		signingKey = uuid.NewString()
		log.Warn().Msg("No signing key configured, issued tokens will not survive a restart")
	}
	auth := middleware.NewJWTAuth(signingKey)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	router.SetupRoutes(app, handlers.New(svc, auth, handlers.Config{
		Accounts:   cfg.Auth.Accounts,
		TokenTTL:   cfg.Auth.TokenTTL,
		TaskSecret: cfg.Tasks.Secret,
	}), auth, log)

	// The dispatcher outlives the server so tasks enqueued by the last
	// requests are still drained.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})
	g.Go(func() error {
		if cfg.Announcement.Interval <= 0 {
			return nil
		}
		return svc.RunAnnouncements(gctx, cfg.Announcement.Interval)
	})
	g.Go(func() error {
		log.Info().Str("listen", cfg.Listen).Msg("Conference central listening")
		return app.Listen(cfg.Listen)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		err := app.Shutdown()
		stopDispatch()
		return err
	})
	return g.Wait()
}

func openCache(ctx context.Context, cfg *config.Config, store database.Store) (cache.Cache, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	if cfg.Cache.Driver != config.DriverMongo {
		return cache.NewMemoryCache(), noop, nil
	}
	if ms, ok := store.(*database.MongoStore); ok {
		return cache.NewMongoCache(ms.Client(), cfg.Store.Mongo.Database), noop, nil
	}
	ms, err := database.OpenMongo(ctx, cfg.Store.Mongo.URI, cfg.Store.Mongo.Database)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewMongoCache(ms.Client(), cfg.Store.Mongo.Database), ms.Close, nil
}

func newMailer(cfg config.MailConfig, log zerolog.Logger) mail.Mailer {
	if cfg.Driver == config.MailSMTP {
		return mail.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.From)
	}
	return mail.NewLogMailer(log)
}

func closeWithTimeout(log zerolog.Logger, name string, closeFn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := closeFn(ctx); err != nil {
		log.Err(err).Str("resource", name).Msg("Failed to close")
	}
}
