package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultFlushInterval    = 30 * time.Second
	DefaultCleanupThreshold = 30
)

// Persister periodically adds the counters collected since the previous
// flush to a Repository.
type Persister struct {
	collector        *Collector
	repository       Repository
	interval         time.Duration
	cleanUpThreshold int

	mu   sync.Mutex
	last map[string]Counters
}

func NewPersister(collector *Collector, repository Repository, interval time.Duration) (*Persister, error) {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if err := repository.CreateTables(); err != nil {
		return nil, err
	}
	return &Persister{
		collector:        collector,
		repository:       repository,
		interval:         interval,
		cleanUpThreshold: DefaultCleanupThreshold,
		last:             make(map[string]Counters),
	}, nil
}

// Run flushes on every tick until ctx is done, then flushes one last time.
func (p *Persister) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := p.Flush(); err != nil {
				logrus.WithError(err).Error("Final statistics flush failed")
			}
			return
		case <-ticker.C:
			if err := p.Flush(); err != nil {
				logrus.WithError(err).Warn("Statistics flush failed")
			}
		}
	}
}

// Flush writes the deltas since the last successful flush. Channels without
// new activity are skipped.
func (p *Persister) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.collector.Snapshot()
	deltas := make([]Snapshot, 0, len(current))
	for _, s := range current {
		delta := s.Counters.Sub(p.last[s.Channel])
		if delta.IsZero() {
			continue
		}
		deltas = append(deltas, Snapshot{Channel: s.Channel, Counters: delta})
	}

	if len(deltas) == 0 {
		return nil
	}

	if err := p.repository.AddCounters(deltas); err != nil {
		return fmt.Errorf("could not persist statistics for %d channels: %w", len(deltas), err)
	}

	for _, s := range current {
		p.last[s.Channel] = s.Counters
	}
	logrus.WithField("channels", len(deltas)).Debug("Persisted statistics")
	return nil
}

func (p *Persister) Close() error {
	deletedCount, cleanupErr := p.repository.CleanupOldEntries(p.cleanUpThreshold)
	if cleanupErr == nil && deletedCount > 0 {
		logrus.WithField("count", deletedCount).Info("Removed stale channel statistics")
	}
	return errors.Join(cleanupErr, p.repository.Close())
}
