// Package provider exposes cached catalog songs to the host application.
package provider

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/songbox/internal/app/songcache"
	"github.com/osa030/songbox/internal/domain/catalog"
	"github.com/osa030/songbox/internal/domain/song"
	"github.com/osa030/songbox/internal/domain/track"
)

const (
	// ID identifies the provider to the host.
	ID = "spotify"
	// Name is the human readable provider name.
	Name = "Spotify Songs"

	defaultSearchLimit = 30
)

var (
	// ErrInitialization marks fatal startup failures.
	ErrInitialization = errors.New("provider initialization failed")
	// ErrNoSuchSong is returned by Lookup when the song cannot be provided.
	ErrNoSuchSong = errors.New("no such song")
	// ErrNotInitialized is returned when the provider is used before Initialize.
	ErrNotInitialized = errors.New("provider is not initialized")
)

// Authenticator produces an authenticated catalog client.
type Authenticator interface {
	Authenticate(ctx context.Context) (catalog.Catalog, error)
	Reset()
}

// Config represents provider configuration.
type Config struct {
	SongDirectory   string
	CacheTime       time.Duration
	StreamQuality   string
	SearchLimit     int
	InitialCapacity int
	MaximumSize     int
	SweepInterval   time.Duration
}

// Provider serves songs from the catalog through the song cache.
type Provider struct {
	cfg       Config
	auth      Authenticator
	cacheOpts []songcache.Option

	mu      sync.RWMutex
	quality StreamQuality
	catalog catalog.Catalog
	cache   *songcache.Cache
	ownsDir bool // song directory was validated by Initialize and is removed on Shutdown
}

// New creates a new provider. Initialize must be called before use.
func New(cfg Config, auth Authenticator, cacheOpts ...songcache.Option) *Provider {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = defaultSearchLimit
	}
	return &Provider{
		cfg:       cfg,
		auth:      auth,
		cacheOpts: cacheOpts,
	}
}

// Initialize prepares the song directory, the cache and the authenticated client.
func (p *Provider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache != nil {
		zlog.Debug().Msg("provider already initialized")
		return nil
	}
	zlog.Info().Msg("initializing provider")

	quality, err := ParseStreamQuality(p.cfg.StreamQuality)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "invalid stream quality"), ErrInitialization)
	}

	if err := ensureSongDirectory(p.cfg.SongDirectory); err != nil {
		return errors.Mark(err, ErrInitialization)
	}

	cache, err := songcache.New(songcache.Config{
		TTL:             p.cfg.CacheTime,
		InitialCapacity: p.cfg.InitialCapacity,
		MaximumSize:     p.cfg.MaximumSize,
		SongDirectory:   p.cfg.SongDirectory,
		SweepInterval:   p.cfg.SweepInterval,
	}, p.loadSong, p.cacheOpts...)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "failed to create song cache"), ErrInitialization)
	}

	client, err := p.auth.Authenticate(ctx)
	if err != nil {
		zlog.Warn().Msgf("logging into catalog failed: %v", err)
		_ = cache.Close()
		return errors.Mark(errors.Wrap(err, "failed to authenticate"), ErrInitialization)
	}

	p.quality = quality
	p.cache = cache
	p.catalog = client
	p.ownsDir = true

	zlog.Info().Msgf("provider initialized: dir=%s quality=%s bitrate=%dkbps cache_time=%v",
		p.cfg.SongDirectory, quality, quality.BitrateKbps(), p.cfg.CacheTime)
	return nil
}

// Search queries the catalog and pre-populates the cache with the results.
// Failures are logged and yield an empty result.
func (p *Provider) Search(ctx context.Context, query string) []song.Song {
	p.mu.RLock()
	client, cache := p.catalog, p.cache
	p.mu.RUnlock()

	if client == nil || cache == nil {
		zlog.Warn().Msgf("search before initialization: query=%q", query)
		return []song.Song{}
	}

	tracks, err := client.SearchTracks(ctx, query, p.cfg.SearchLimit)
	if err != nil {
		zlog.Warn().Err(err).Msgf("exception while searching: query=%q", query)
		return []song.Song{}
	}

	songs := make([]song.Song, 0, len(tracks))
	for _, t := range tracks {
		s, err := song.FromTrack(t)
		if err != nil {
			zlog.Warn().Err(err).Msgf("skipping search result: query=%q", query)
			continue
		}
		cache.Put(s)
		songs = append(songs, s)
	}

	zlog.Debug().Msgf("search finished: query=%q results=%d", query, len(songs))
	return songs
}

// Lookup returns the song for id, fetching it from the catalog if it is not cached.
// The id may also be a track URL or URI.
func (p *Provider) Lookup(ctx context.Context, id string) (song.Song, error) {
	p.mu.RLock()
	cache := p.cache
	p.mu.RUnlock()

	if cache == nil {
		return song.Song{}, errors.Mark(ErrNotInitialized, ErrNoSuchSong)
	}

	s, err := cache.Get(ctx, track.ParseID(id))
	if err != nil {
		return song.Song{}, errors.Mark(errors.Wrapf(err, "lookup %s", id), ErrNoSuchSong)
	}
	return s, nil
}

// InvalidateCache drops every cached song and its file.
func (p *Provider) InvalidateCache() {
	p.mu.RLock()
	cache := p.cache
	p.mu.RUnlock()

	if cache != nil {
		cache.InvalidateAll()
	}
}

// Shutdown evicts every cached song, releases the client and removes the song directory.
func (p *Provider) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache != nil {
		if err := p.cache.Close(); err != nil {
			zlog.Warn().Err(err).Msg("failed to close song cache")
		}
		p.cache = nil
	}
	p.catalog = nil
	p.auth.Reset()

	if p.ownsDir {
		p.ownsDir = false
		if err := os.RemoveAll(p.cfg.SongDirectory); err != nil {
			return errors.Wrap(err, "failed to remove song directory")
		}
	}

	zlog.Info().Msg("provider shut down")
	return nil
}

// Quality returns the configured stream quality.
func (p *Provider) Quality() StreamQuality {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.quality
}

// SongPath returns where the audio file for a song is cached.
func (p *Provider) SongPath(id string) string {
	return filepath.Join(p.cfg.SongDirectory, id+songcache.FileExtension)
}

// loadSong is the cache loader: fetch the track and materialize it.
func (p *Provider) loadSong(ctx context.Context, id string) (song.Song, error) {
	p.mu.RLock()
	client := p.catalog
	p.mu.RUnlock()

	if client == nil {
		return song.Song{}, ErrNotInitialized
	}

	zlog.Debug().Msgf("adding song to cache: id=%s", id)
	t, err := client.FetchTrack(ctx, id)
	if err != nil {
		return song.Song{}, err
	}
	return song.FromTrack(*t)
}

// ensureSongDirectory creates the song directory. Its parent must already exist.
// An existing directory is accepted only when it is empty.
func ensureSongDirectory(dir string) error {
	if dir == "" {
		return errors.New("song directory is required")
	}
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.Newf("song directory is not a directory: %s", dir)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return errors.Wrap(err, "failed to read song directory")
		}
		if len(entries) > 0 {
			return errors.Newf("song directory is not empty: %s", dir)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "failed to stat song directory")
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		return errors.Wrap(err, "unable to create song directory")
	}
	return nil
}
