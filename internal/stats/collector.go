// Package stats counts forwarded, dropped and failed events per channel.
package stats

import (
	"sort"
	"sync"
	"sync/atomic"
)

type Counters struct {
	Forwarded  uint64
	Dropped    uint64
	SendErrors uint64
}

func (c Counters) IsZero() bool {
	return c == Counters{}
}

func (c Counters) Sub(o Counters) Counters {
	return Counters{
		Forwarded:  c.Forwarded - o.Forwarded,
		Dropped:    c.Dropped - o.Dropped,
		SendErrors: c.SendErrors - o.SendErrors,
	}
}

func (c Counters) Add(o Counters) Counters {
	return Counters{
		Forwarded:  c.Forwarded + o.Forwarded,
		Dropped:    c.Dropped + o.Dropped,
		SendErrors: c.SendErrors + o.SendErrors,
	}
}

type Snapshot struct {
	Channel string
	Counters
}

type channelCounters struct {
	forwarded  atomic.Uint64
	dropped    atomic.Uint64
	sendErrors atomic.Uint64
}

// Collector is safe for concurrent use. Counting only takes a read lock once
// a channel is registered.
type Collector struct {
	mu       sync.RWMutex
	channels map[string]*channelCounters
}

func NewCollector() *Collector {
	return &Collector{channels: make(map[string]*channelCounters)}
}

// Register makes sure channel is present in snapshots, even without events.
func (c *Collector) Register(channel string) {
	c.get(channel)
}

func (c *Collector) get(channel string) *channelCounters {
	c.mu.RLock()
	cc, ok := c.channels[channel]
	c.mu.RUnlock()
	if ok {
		return cc
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cc, ok = c.channels[channel]; !ok {
		cc = &channelCounters{}
		c.channels[channel] = cc
	}
	return cc
}

func (c *Collector) Forwarded(channel string) {
	c.get(channel).forwarded.Add(1)
}

func (c *Collector) Dropped(channel string) {
	c.get(channel).dropped.Add(1)
}

func (c *Collector) SendError(channel string) {
	c.get(channel).sendErrors.Add(1)
}

// Snapshot returns the current counters sorted by channel name.
func (c *Collector) Snapshot() []Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(c.channels))
	for name, cc := range c.channels {
		snaps = append(snaps, Snapshot{
			Channel: name,
			Counters: Counters{
				Forwarded:  cc.forwarded.Load(),
				Dropped:    cc.dropped.Load(),
				SendErrors: cc.sendErrors.Load(),
			},
		})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Channel < snaps[j].Channel })
	return snaps
}

func (c *Collector) Totals() Counters {
	var total Counters
	for _, s := range c.Snapshot() {
		total = total.Add(s.Counters)
	}
	return total
}
