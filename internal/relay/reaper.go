package relay

import (
	"log/slog"
	"sync"
	"time"
)

// Reaper periodically hard-deletes sessions that have been Offline longer
// than the configured TTL, bounding growth from abandoned registrations.
type Reaper struct {
	core     *Core
	interval time.Duration
	ttl      time.Duration
	log      *slog.Logger

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewReaper(core *Core, interval, ttl time.Duration, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		core:     core,
		interval: interval,
		ttl:      ttl,
		log:      logger,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (r *Reaper) Start() {
	r.wg.Add(1)
	go r.run()
}

func (r *Reaper) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.core.Reap(r.ttl)
		}
	}
}

// Close stops the sweep loop and waits for an in-flight sweep to finish.
func (r *Reaper) Close() {
	r.once.Do(func() { close(r.done) })
	r.wg.Wait()
}
