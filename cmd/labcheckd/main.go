package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/celerix-dev/labcheck/internal/api"
	"github.com/celerix-dev/labcheck/internal/config"
	"github.com/celerix-dev/labcheck/internal/engine"
	"github.com/celerix-dev/labcheck/internal/notify"
	"github.com/celerix-dev/labcheck/internal/roster"
	"github.com/celerix-dev/labcheck/internal/server"
	"github.com/celerix-dev/labcheck/internal/training"
	"github.com/celerix-dev/labcheck/internal/vault"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func setup(confPath string) *config.Conf {
	conf, err := config.LoadConfig(confPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	if err := config.ApplyEnv(conf); err != nil {
		log.Fatal().Err(err).Msg("Invalid environment")
	}
	if _, err := config.SetupLogging(conf.Logging); err != nil {
		log.Fatal().Err(err).Msg("Cannot set up logging")
	}
	if err := config.ValidateAndDefaults(conf); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	return conf
}

func loadBank(path string) *training.Bank {
	if path == "" {
		return training.DefaultBank()
	}
	bank, err := training.LoadBank(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load question bank")
	}
	return bank
}

func loadRoster(conf *config.Conf) *roster.Roster {
	path := conf.RosterPath
	if path == "" {
		path = filepath.Join(conf.DataDir, "user_status.xlsx")
	}
	r, err := roster.Load(path)
	if errors.Is(err, roster.ErrRosterMissing) {
		log.Warn().Str("path", path).Msg("roster not found, subjects are not validated")
		return nil
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load roster")
	}
	log.Info().Int("users", len(r.Users())).Msg("roster loaded")
	return r
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\t%s [config.json]\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "\nEnvironment: LABCHECK_DATA_DIR, LABCHECK_HTTP_PORT, LABCHECK_TCP_PORT, LABCHECK_STORE, LABCHECK_NATS_URL\n")
	}
	flag.Parse()
	conf := setup(flag.Arg(0))

	log.Info().Str("config", conf.SrcPath()).Msg("starting labcheck daemon")

	// 1. Record store
	store, err := engine.Open(conf.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer store.Close()

	// 2. Notifier
	notifier, closeNotifier, err := notify.Open(conf.NATS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up notifications")
	}
	defer closeNotifier()

	// 3. Tracker
	rst := loadRoster(conf)
	opts := []training.Option{training.WithNotifier(notifier)}
	if rst != nil {
		opts = append(opts, training.WithDirectory(rst))
	}
	tracker := training.NewTracker(store, loadBank(conf.QuestionBankPath), opts...)

	// 4. TCP router
	router := server.NewRouter(tracker)
	if conf.TLS.Enabled() {
		cert, err := vault.LoadCertificate(conf.TLS.CertFile, conf.TLS.KeyFile, conf.ListenAddress)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set up TLS")
		}
		router.SetCertificate(cert)
	}

	// 5. HTTP API
	if !conf.Logging.IsDebugMode() {
		gin.SetMode(gin.ReleaseMode)
	}
	h := &api.Handler{
		Tracker:   tracker,
		Roster:    rst,
		Trace:     conf.TraceOptions(),
		ReportDir: conf.ReportDir,
	}
	httpServer := &http.Server{
		Addr:              conf.HTTPAddr(),
		Handler:           api.NewEngine(h, conf.CorsAllowedOrigins),
		ReadHeaderTimeout: 30 * time.Second,
	}

	// 6. Start servers
	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("address", conf.HTTPAddr()).Msg("HTTP API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()
	go func() {
		if err := router.Listen(conf.TCPAddr()); err != nil {
			errCh <- fmt.Errorf("TCP server failed: %w", err)
		}
	}()

	// 7. Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Warn().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server stopped")
	}

	router.Stop()
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), time.Duration(conf.ShutdownTimeoutSecs)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown incomplete")
	}
	log.Info().Msg("labcheck daemon stopped")
}
