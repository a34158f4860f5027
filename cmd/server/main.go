// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/songbox/internal/api/connect"
	"github.com/osa030/songbox/internal/app/auth"
	"github.com/osa030/songbox/internal/app/provider"
	"github.com/osa030/songbox/internal/infra/config"
	"github.com/osa030/songbox/internal/infra/logger"
	"github.com/osa030/songbox/internal/infra/spotify"
	"github.com/osa030/songbox/internal/infra/tokenstore"
)

var (
	app        = kingpin.New("songbox-server", "songbox song provider server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	store, err := tokenstore.New(cfg.TokenStore.Type, cfg.TokenStore.Settings)
	if err != nil {
		return errors.Wrap(err, "failed to open token store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			zlog.Warn().Err(err).Msg("failed to close token store")
		}
	}()

	authenticator, err := spotify.NewAuthenticator(spotifyConfig(cfg))
	if err != nil {
		return errors.Wrap(err, "failed to create Spotify authenticator")
	}
	session := auth.NewSession(authenticator, authenticator, store, auth.Credentials{
		Username: cfg.Spotify.Username,
		Password: cfg.Spotify.Password,
		DeviceID: cfg.Spotify.DeviceID,
	})

	songs := provider.New(provider.Config{
		SongDirectory:   cfg.Provider.SongDirectory,
		CacheTime:       cfg.CacheTime(),
		StreamQuality:   cfg.Provider.StreamQuality,
		SearchLimit:     cfg.Provider.SearchLimit,
		InitialCapacity: cfg.Provider.Cache.InitialCapacity,
		MaximumSize:     cfg.Provider.Cache.MaximumSize,
		SweepInterval:   cfg.SweepInterval(),
	}, session)

	ctx := context.Background()
	if err := songs.Initialize(ctx); err != nil {
		return err
	}
	defer func() {
		if err := songs.Shutdown(); err != nil {
			zlog.Error().Msgf("Failed to shut down provider: %v", err)
		}
	}()
	zlog.Info().Msgf("Provider ready: id=%s name=%q quality=%s", provider.ID, provider.Name, songs.Quality())

	logging := apiconnect.NewLoggingInterceptor()
	mux := http.NewServeMux()
	songPath, songHandler := apiconnect.NewSongServiceHandler(
		apiconnect.NewSongService(songs),
		connect.WithInterceptors(logging),
	)
	adminPath, adminHandler := apiconnect.NewAdminServiceHandler(
		apiconnect.NewAdminService(songs),
		connect.WithInterceptors(logging, apiconnect.NewAdminAuthInterceptor(cfg)),
	)
	mux.Handle(songPath, songHandler)
	mux.Handle(adminPath, adminHandler)

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	return nil
}

func spotifyConfig(cfg *config.Config) spotify.Config {
	return spotify.Config{
		ClientID:          cfg.Spotify.ClientID,
		ClientSecret:      cfg.Spotify.ClientSecret,
		Market:            cfg.Spotify.Market,
		TokenURL:          cfg.Spotify.TokenURL,
		APIURL:            cfg.Spotify.APIURL,
		RequestsPerSecond: cfg.Spotify.RequestsPerSecond,
		Burst:             cfg.Spotify.Burst,
		Timeout:           cfg.SpotifyTimeout(),
	}
}
