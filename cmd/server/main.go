package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/voicerooms/internal/adapters/http"
	"github.com/dkeye/voicerooms/internal/adapters/rtc"
	"github.com/dkeye/voicerooms/internal/app"
	"github.com/dkeye/voicerooms/internal/app/orch"
	"github.com/dkeye/voicerooms/internal/auth"
	"github.com/dkeye/voicerooms/internal/config"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
	"github.com/dkeye/voicerooms/internal/federation"
	"github.com/dkeye/voicerooms/internal/snapshot"
)

func setupLogger(cfg *config.Config) {
	if cfg.Mode == "debug" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func orchConfig(cfg *config.Config) orch.Config {
	return orch.Config{
		Rooms: app.RoomConfig{
			DefaultMaxUsers: cfg.Rooms.DefaultMaxUsers,
			MaxUsersCap:     cfg.Rooms.AuthMaxUsers,
			EmptyTTL:        cfg.Rooms.EmptyTTL,
			BcryptCost:      cfg.Rooms.BcryptCost,
		},
		Messages: app.MessageConfig{
			MaxPerConversation: cfg.Messages.MaxPerConversation,
			GuestRetention:     cfg.Messages.GuestRetention,
			DefaultPage:        cfg.Messages.DefaultPage,
			MaxPage:            cfg.Messages.MaxPage,
		},
		Limits: app.CreateLimits{
			GuestMaxUsers:    cfg.Rooms.GuestMaxUsers,
			AuthMaxUsers:     cfg.Rooms.AuthMaxUsers,
			GuestMinDuration: cfg.Rooms.GuestMinDuration,
			GuestMaxDuration: cfg.Rooms.GuestMaxDuration,
		},
		CreateLimit:        cfg.Rooms.CreateLimit,
		CreateWindow:       cfg.Rooms.CreateWindow,
		MaxTextLen:         cfg.Messages.MaxTextLen,
		RoomSweepInterval:  cfg.Rooms.SweepInterval,
		GuestSweepInterval: cfg.Messages.SweepInterval,
		ICEServers:         rtc.ICEServers(cfg.WebRTC.ICEServers),
	}
}

// seedRooms creates the configured permanent rooms unless a snapshot
// already brought them back.
func seedRooms(ctx context.Context, o *orch.Orchestrator, defaults []config.DefaultRoom) {
	for _, d := range defaults {
		_, err := o.CreateKeepRoom(ctx, app.RoomSpec{
			ID:          domain.RoomID(d.ID),
			Name:        d.Name,
			Description: d.Description,
			MaxUsers:    d.MaxUsers,
		})
		switch {
		case err == nil:
			log.Info().Str("room_id", d.ID).Msg("default room created")
		case errors.Is(err, domain.ErrRoomExists):
		default:
			log.Error().Err(err).Str("room_id", d.ID).Msg("default room")
		}
	}
}

func snapshotLoop(ctx context.Context, o *orch.Orchestrator, store snapshot.Store, interval time.Duration) {
	if interval <= 0 || snapshot.Mode(store) == "noop" {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, err := o.Snapshot(ctx)
			if err != nil {
				continue
			}
			if err := store.Save(ctx, st); err != nil {
				log.Warn().Err(err).Msg("snapshot save failed")
			}
		}
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	publisher := federation.NewPublisher(cfg.Federation.AMQPURL, cfg.Federation.Exchange)
	gateway := federation.NewGateway(federation.Config{
		InstanceID:    cfg.InstanceID,
		Peers:         cfg.Federation.Peers,
		FetchTimeout:  cfg.Federation.FetchTimeout,
		NotifyTimeout: cfg.Federation.NotifyTimeout,
	}, publisher, nil)
	log.Info().Str("publisher", federation.PublisherMode(publisher)).Int("peers", len(cfg.Federation.Peers)).Msg("federation ready")

	store := snapshot.NewStore(ctx, snapshot.Config{
		RedisAddr: cfg.Snapshot.RedisAddr,
		Password:  cfg.Snapshot.RedisPassword,
		DB:        cfg.Snapshot.RedisDB,
		Key:       cfg.Snapshot.Key,
		TTL:       cfg.Snapshot.TTL,
	})
	defer store.Close()

	o := orch.New(orchConfig(cfg), core.SystemClock(), gateway, app.PolicyFor(cfg.Relay.SlowConsumer))
	verifier := auth.NewVerifier(cfg.JWTSecret)

	runCtx, stopRun := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		o.Run(gctx)
		return nil
	})

	st, err := store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("snapshot load failed, starting empty")
	} else if err := o.Restore(ctx, st); err != nil {
		log.Warn().Err(err).Msg("snapshot restore failed")
	}
	seedRooms(ctx, o, cfg.Rooms.Defaults)

	g.Go(func() error {
		gateway.Run(gctx, cfg.Federation.RefreshInterval)
		return nil
	})
	g.Go(func() error {
		snapshotLoop(gctx, o, store, cfg.Snapshot.Interval)
		return nil
	})

	r := router.SetupRouter(ctx, cfg, o, verifier)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info().Str("addr", addr).Bool("auth", verifier.Enabled()).Msg("voice rooms server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-ctx.Done():
	case <-gctx.Done():
	}
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Final snapshot is taken while the loop is still running.
	if st, err := o.Snapshot(shutdownCtx); err == nil {
		if err := store.Save(shutdownCtx, st); err != nil {
			log.Warn().Err(err).Msg("final snapshot failed")
		}
	}
	stopRun()
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
	}
	if err := gateway.Close(); err != nil {
		log.Warn().Err(err).Msg("federation close")
	}
	log.Info().Msg("Server exited gracefully")
}
