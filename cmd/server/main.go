// Command server runs the seat reservation broker: the HTTP API, the
// line-delimited JSON broadcast server, the expired-hold sweeper and,
// when enabled, the booking event consumer.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/seat-reservation-broker/internal/broker"
	"github.com/iliyamo/seat-reservation-broker/internal/config"
	"github.com/iliyamo/seat-reservation-broker/internal/database"
	"github.com/iliyamo/seat-reservation-broker/internal/handler"
	"github.com/iliyamo/seat-reservation-broker/internal/middleware"
	"github.com/iliyamo/seat-reservation-broker/internal/notify"
	"github.com/iliyamo/seat-reservation-broker/internal/queue"
	"github.com/iliyamo/seat-reservation-broker/internal/repository"
	"github.com/iliyamo/seat-reservation-broker/internal/router"
	"github.com/iliyamo/seat-reservation-broker/internal/service"
)

// store is what the server needs from a backend: seats, bookings and chat
// messages.
type store interface {
	repository.Store
	repository.MessageStore
}

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// The env file has to be known before the environment is read, so it
	// gets its own pass over the arguments.
	pre := pflag.NewFlagSet("server", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	envFile := pre.String("env-file", ".env", "dotenv file loaded before reading the environment")
	_ = pre.Parse(os.Args[1:])

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := pflag.NewFlagSet("server", pflag.ExitOnError)
	fs.String("env-file", *envFile, "dotenv file loaded before reading the environment")
	cfg.BindFlags(fs)
	_ = fs.Parse(os.Args[1:])
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("flags: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := service.Options{
		HoldTTL:             cfg.HoldTTL,
		CancelReleasesSeats: cfg.CancelReleasesSeats,
		Logger:              logger,
	}
	if cfg.BookingEventsEnabled {
		opts.Notifier = queue.NewPublisher(cfg.AMQPURL, logger)
	}

	reg := broker.NewRegistry(logger)
	seats := service.NewSeatService(st, reg, opts)
	srv := broker.NewServer(reg, seats, logger)
	sweeper := service.NewSweeper(seats, cfg.SweepInterval, logger)

	facade := notify.New(notify.Config{
		BrokerAddr:    cfg.NotifyTarget(),
		TypingTimeout: cfg.TypingTimeout,
	}, notify.WithLogger(logger), notify.WithMessageStore(st))

	rdb := config.NewRedisClient(ctx, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	router.RegisterRoutes(e, router.Deps{
		Health:      handler.Health(srv.Connections, facade.Connected),
		Seats:       handler.NewSeatHandler(seats),
		Chat:        handler.NewChatHandler(facade),
		JWTSecret:   cfg.JWTSecret,
		HoldLimiter: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(ctx, cfg.BrokerAddr) })
	g.Go(func() error { return sweeper.Run(ctx) })
	g.Go(func() error {
		facade.Start(ctx)
		<-ctx.Done()
		facade.Close()
		return nil
	})
	if cfg.BookingEventsEnabled {
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.BookingLogDir, logger)
		g.Go(func() error { return consumer.Run(ctx) })
	}
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		mem := repository.NewMemoryStore()
		for _, s := range cfg.MemoryScreenings {
			mem.AddScreening(s.ID, s.Title, s.TotalSeats)
		}
		logger.Info("using in-memory store", "screenings", len(cfg.MemoryScreenings))
		return mem, func() {}, nil
	}

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info("using mysql store", "host", cfg.DB.Host, "db", cfg.DB.Name)
	return repository.NewMySQLStore(db), func() { _ = db.Close() }, nil
}
