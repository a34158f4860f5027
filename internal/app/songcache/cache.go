// Package songcache provides an expiring, size-bounded, single-flight Song cache
// whose evictions delete the corresponding cached audio files.
package songcache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/osa030/songbox/internal/domain/song"
)

var (
	// ErrLookup marks every failure returned by Get.
	ErrLookup = errors.New("song lookup failed")
	// ErrClosed is returned by Get once the cache has been closed.
	ErrClosed = errors.New("song cache is closed")
	// ErrIDMismatch is returned when the loader yields a song stored under another ID.
	ErrIDMismatch = errors.New("loaded song id does not match key")
)

// FileExtension is the extension of cached audio files.
const FileExtension = ".mp3"

// LoaderFunc loads a song that is not cached yet.
type LoaderFunc func(ctx context.Context, id string) (song.Song, error)

// Config represents cache configuration.
type Config struct {
	TTL             time.Duration `validate:"gt=0"`                 // Sliding expiry after last access
	InitialCapacity int           `default:"256" validate:"gte=0"`  // Sizing hint only
	MaximumSize     int           `default:"1024" validate:"gte=1"` // Hard cap on entries
	SongDirectory   string        `validate:"required"`             // Directory holding {id}.mp3 files
	SweepInterval   time.Duration `default:"30s"`                   // Background expiry sweep (negative disables)
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithRemoveFunc overrides how cached audio files are deleted.
func WithRemoveFunc(remove func(path string) error) Option {
	return func(c *Cache) {
		c.remove = remove
	}
}

// WithRemovalListener registers an additional listener for removed songs.
func WithRemovalListener(l RemovalListener) Option {
	return func(c *Cache) {
		c.listeners = append(c.listeners, l)
	}
}

// entry is a cached song with its last access time.
type entry struct {
	song       song.Song
	lastAccess time.Time
}

// Cache maps track IDs to songs.
type Cache struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[string, *entry]
	cause   RemovalCause // cause reported by onEvict, guarded by mu
	evicted []removal    // evictions not yet dispatched, guarded by mu
	closed  bool

	ttl       time.Duration
	dir       string
	loader    LoaderFunc
	group     singleflight.Group
	listeners []RemovalListener
	cleaner   *cleaner
	now       func() time.Time
	remove    func(path string) error

	stop chan struct{}
	done chan struct{}
}

// New creates a new cache. The loader is called on misses.
func New(cfg Config, loader LoaderFunc, opts ...Option) (*Cache, error) {
	if loader == nil {
		return nil, errors.New("loader is required")
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid cache config")
	}

	c := &Cache{
		cause:  CauseSize,
		ttl:    cfg.TTL,
		dir:    cfg.SongDirectory,
		loader: loader,
		now:    time.Now,
		remove: os.Remove,
	}
	for _, opt := range opts {
		opt(c)
	}

	lru, err := simplelru.NewLRU[string, *entry](cfg.MaximumSize, c.onEvict)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create lru")
	}
	c.lru = lru
	c.cleaner = newCleaner(c.remove, cfg.InitialCapacity)

	// The file listener goes first so deletions are queued before other listeners run.
	c.listeners = append([]RemovalListener{c.removeFile}, c.listeners...)

	if cfg.SweepInterval > 0 {
		c.stop = make(chan struct{})
		c.done = make(chan struct{})
		go c.sweepLoop(cfg.SweepInterval)
	}

	zlog.Info().Msgf("song cache created: ttl=%v max_size=%d dir=%s", cfg.TTL, cfg.MaximumSize, cfg.SongDirectory)
	return c, nil
}

// Path returns the location of the cached audio file for a song ID.
func (c *Cache) Path(id string) string {
	return filepath.Join(c.dir, id+FileExtension)
}

// Get returns the cached song for id, loading it on a miss.
// Concurrent misses for the same id share a single load.
// Load failures are returned to every waiting caller and are not cached.
func (c *Cache) Get(ctx context.Context, id string) (song.Song, error) {
	if s, ok := c.getIfPresent(id); ok {
		return s, nil
	}
	if c.isClosed() {
		return song.Song{}, errors.Mark(errors.Wrapf(ErrClosed, "get %s", id), ErrLookup)
	}

	ch := c.group.DoChan(id, func() (any, error) {
		// A flight that finished just before this one may already have stored it.
		if s, ok := c.getIfPresent(id); ok {
			return s, nil
		}
		zlog.Debug().Msgf("loading song into cache: id=%s", id)
		// Waiters may give up individually; the shared load keeps going for the rest.
		s, err := c.loader(context.WithoutCancel(ctx), id)
		if err != nil {
			return nil, err
		}
		// Entries are keyed by the ID their file is named after.
		if s.ID != id {
			return nil, errors.Wrapf(ErrIDMismatch, "key %q, song %q", id, s.ID)
		}
		return c.store(id, s), nil
	})

	select {
	case <-ctx.Done():
		return song.Song{}, errors.Mark(errors.Wrapf(ctx.Err(), "waiting for song %s", id), ErrLookup)
	case res := <-ch:
		if res.Err != nil {
			return song.Song{}, errors.Mark(errors.Wrapf(res.Err, "failed to load song %s", id), ErrLookup)
		}
		return res.Val.(song.Song), nil
	}
}

// Put inserts or overwrites a song and resets its last access time.
// Overwriting is not a removal and leaves the cached file alone.
func (c *Cache) Put(s song.Song) {
	c.mu.Lock()
	defer c.unlockAndNotify()

	if c.closed {
		zlog.Debug().Msgf("ignoring put on closed song cache: id=%s", s.ID)
		return
	}
	c.lru.Add(s.ID, &entry{song: s, lastAccess: c.now()})
}

// Len returns the number of cached entries, expired ones included until they are swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// InvalidateAll removes every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.unlockAndNotify()
	c.purgeLocked()
}

// Close removes every entry, stops the sweeper and waits for pending file deletions.
// The cache rejects lookups afterwards.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.purgeLocked()
	c.unlockAndNotify()

	if c.stop != nil {
		close(c.stop)
		<-c.done
	}
	c.cleaner.close()

	zlog.Info().Msg("song cache closed")
	return nil
}

// getIfPresent returns a live entry and refreshes its last access time.
// An expired entry is removed and reported as a miss.
func (c *Cache) getIfPresent(id string) (song.Song, bool) {
	c.mu.Lock()
	defer c.unlockAndNotify()

	if c.closed {
		return song.Song{}, false
	}
	e, ok := c.lru.Get(id)
	if !ok {
		return song.Song{}, false
	}
	now := c.now()
	if c.expired(e, now) {
		c.removeLocked(id, CauseExpired)
		return song.Song{}, false
	}
	e.lastAccess = now
	return e.song, true
}

// store caches a loaded song unless a live entry appeared while it was loading.
func (c *Cache) store(id string, s song.Song) song.Song {
	c.mu.Lock()
	defer c.unlockAndNotify()

	if c.closed {
		return s
	}
	now := c.now()
	if e, ok := c.lru.Get(id); ok && !c.expired(e, now) {
		e.lastAccess = now
		return e.song
	}
	c.lru.Add(id, &entry{song: s, lastAccess: now})
	return s
}

// sweep removes expired entries, oldest access first.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.unlockAndNotify()

	now := c.now()
	for {
		id, e, ok := c.lru.GetOldest()
		if !ok || !c.expired(e, now) {
			return
		}
		c.removeLocked(id, CauseExpired)
	}
}

func (c *Cache) sweepLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return now.Sub(e.lastAccess) > c.ttl
}

// removeLocked removes one entry, reporting the given cause. Requires c.mu.
func (c *Cache) removeLocked(id string, cause RemovalCause) {
	c.cause = cause
	c.lru.Remove(id)
	c.cause = CauseSize
}

// purgeLocked removes every entry. Requires c.mu.
func (c *Cache) purgeLocked() {
	c.cause = CauseExplicit
	c.lru.Purge()
	c.cause = CauseSize
}

// onEvict is the lru eviction callback. It runs with c.mu held.
// Anything the lru evicts on its own (Add over capacity) is a size eviction.
func (c *Cache) onEvict(_ string, e *entry) {
	c.evicted = append(c.evicted, removal{song: e.song, cause: c.cause})
}

// unlockAndNotify releases c.mu and dispatches collected evictions to listeners.
func (c *Cache) unlockAndNotify() {
	evicted := c.evicted
	c.evicted = nil
	c.mu.Unlock()

	for _, r := range evicted {
		for _, l := range c.listeners {
			l(r.song, r.cause)
		}
	}
}

// removeFile schedules deletion of the evicted song's audio file.
// The path is derived from the snapshot handed to the listener, never from live cache state.
func (c *Cache) removeFile(s song.Song, cause RemovalCause) {
	zlog.Debug().Msgf("removing song from cache: id=%s cause=%s", s.ID, cause)
	c.cleaner.enqueue(cleanupTask{id: s.ID, path: c.Path(s.ID)})
}
