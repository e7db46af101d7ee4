package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liuscraft/orion-voice/internal/audio"
	"github.com/liuscraft/orion-voice/internal/config"
	"github.com/liuscraft/orion-voice/internal/httpapi"
	"github.com/liuscraft/orion-voice/internal/logging"
	"github.com/liuscraft/orion-voice/internal/permission"
	"github.com/liuscraft/orion-voice/internal/sink"
	"github.com/liuscraft/orion-voice/internal/voice"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control API and event sinks",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Sync()

	if err := cfg.ValidateEngine(); err != nil {
		logging.Warnf("Engine not ready: %v", err)
	}

	logging.Infof("========================================")
	logging.Infof("        Voiced Starting...              ")
	logging.Infof("========================================")

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	logging.Infof("PortAudio initialized successfully")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory, closeFactory, err := newFactory(cfg, audio.MicrophoneFactory(captureConfig(cfg)))
	if err != nil {
		return err
	}
	defer closeFactory()

	requester, err := newRequester(cfg.Permission.Mode)
	if err != nil {
		return err
	}

	bus := voice.NewEventBus()
	defer bus.Close()

	sinks, err := sink.Open(ctx, cfg.Sinks, bus)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logging.Warnf("Close sinks: %v", err)
		}
	}()
	logging.Infof("Sinks: %v", sinks.Names())

	ctrl := voice.NewController(factory, permission.NewGate(requester), bus)
	defer func() {
		if err := ctrl.DestroySpeech(context.Background()); err != nil && !errors.Is(err, voice.ErrNoEngine) {
			logging.Warnf("Destroy speech on shutdown: %v", err)
		}
	}()

	return serveHTTP(ctx, cfg, ctrl, sinks)
}

func serveHTTP(ctx context.Context, cfg *config.AppConfig, ctrl *voice.Controller, sinks *sink.Set) error {
	opts := httpapi.Options{
		EventsPath: cfg.Sinks.WebSocket.Path,
		LogLevel:   logging.LevelHandler(),
	}
	if sinks.WebSocket != nil {
		opts.Events = sinks.WebSocket
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(ctrl, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Infof("HTTP listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Infof("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
