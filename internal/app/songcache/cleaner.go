package songcache

import (
	"io/fs"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// cleanupTask is a pending deletion of one cached audio file.
type cleanupTask struct {
	id   string
	path string
}

// cleaner deletes cached audio files on a single worker goroutine.
// Deletions run in eviction order, one at a time, so two deletions of the same key never overlap.
type cleaner struct {
	remove func(path string) error

	mu     sync.Mutex
	queue  []cleanupTask
	closed bool

	wake chan struct{}
	done chan struct{}
}

// newCleaner creates a cleaner and starts its worker.
func newCleaner(remove func(path string) error, capacityHint int) *cleaner {
	if capacityHint < 0 {
		capacityHint = 0
	}
	c := &cleaner{
		remove: remove,
		queue:  make([]cleanupTask, 0, capacityHint),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// enqueue schedules a deletion. It never blocks on the deletion itself.
// Once the cleaner is closed the deletion runs inline so it is never lost.
func (c *cleaner) enqueue(t cleanupTask) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.delete(t)
		return
	}
	c.queue = append(c.queue, t)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// close stops accepting queued work and waits until every queued deletion has run.
func (c *cleaner) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	<-c.done
}

func (c *cleaner) run() {
	defer close(c.done)
	for {
		c.mu.Lock()
		batch := c.queue
		c.queue = nil
		closed := c.closed
		c.mu.Unlock()

		for _, t := range batch {
			c.delete(t)
		}

		if len(batch) == 0 {
			if closed {
				return
			}
			<-c.wake
		}
	}
}

// delete removes one file. A missing file is fine; any other failure is logged and dropped.
func (c *cleaner) delete(t cleanupTask) {
	err := c.remove(t.path)
	switch {
	case err == nil:
		zlog.Debug().Msgf("removed cached song file: id=%s path=%s", t.id, t.path)
	case errors.Is(err, fs.ErrNotExist):
	default:
		zlog.Warn().Err(err).Msgf("failed to remove cached song file: id=%s path=%s", t.id, t.path)
	}
}
