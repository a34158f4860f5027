// Package main provides the Spotify authentication tool.
// It runs the authentication session once so the server starts with a valid stored token.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/songbox/internal/app/auth"
	"github.com/osa030/songbox/internal/infra/config"
	"github.com/osa030/songbox/internal/infra/logger"
	"github.com/osa030/songbox/internal/infra/spotify"
	"github.com/osa030/songbox/internal/infra/tokenstore"
)

var (
	app        = kingpin.New("songbox-auth", "Spotify authentication tool for songbox")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	force      = app.Flag("force", "Discard the stored token and log in again").Bool()
	timeout    = app.Flag("timeout", "Authentication timeout").Default("30s").Duration()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
)

func main() {
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	level := "info"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(logger.Config{Output: "stderr", Level: level}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Authentication failed: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	store, err := tokenstore.New(cfg.TokenStore.Type, cfg.TokenStore.Settings)
	if err != nil {
		return err
	}
	defer store.Close()

	if *force {
		if err := store.Clear(); err != nil {
			return err
		}
	}

	authenticator, err := spotify.NewAuthenticator(spotify.Config{
		ClientID:          cfg.Spotify.ClientID,
		ClientSecret:      cfg.Spotify.ClientSecret,
		Market:            cfg.Spotify.Market,
		TokenURL:          cfg.Spotify.TokenURL,
		APIURL:            cfg.Spotify.APIURL,
		RequestsPerSecond: cfg.Spotify.RequestsPerSecond,
		Burst:             cfg.Spotify.Burst,
		Timeout:           cfg.SpotifyTimeout(),
	})
	if err != nil {
		return err
	}

	session := auth.NewSession(authenticator, authenticator, store, auth.Credentials{
		Username: cfg.Spotify.Username,
		Password: cfg.Spotify.Password,
		DeviceID: cfg.Spotify.DeviceID,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if _, err := session.Authenticate(ctx); err != nil {
		return err
	}

	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Printf("Token saved to the %s token store.\n", cfg.TokenStore.Type)
	return nil
}
