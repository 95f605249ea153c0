package metrics

import (
	"time"

	"github.com/cuemby/share/pkg/sot"
)

// Collector periodically samples the Source of Truth and publishes
// gauge metrics from it - entry count and global version move only on
// writes, so polling every few seconds is enough to keep them fresh
// without adding a metrics hook to every coordinator write path.
type Collector struct {
	store  sot.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over store.
func NewCollector(store sot.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	SoTEntries.Set(float64(len(c.store.SnapshotNames())))
	SoTGlobalVersion.Set(float64(c.store.GlobalVersion()))
}
