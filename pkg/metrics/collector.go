package metrics

import "time"

// LeaderChecker is the subset of txcontroller.Controller the collector
// polls for leadership status.
type LeaderChecker interface {
	IsLeader() bool
}

// QueueDepther is the subset of hooks.Engine the collector polls for its
// worker backlog.
type QueueDepther interface {
	QueueDepth() int
}

// Collector periodically samples state that isn't naturally updated by the
// operation it describes (TC's leadership flag, HE's queue depth), as
// opposed to counters and histograms which are updated inline at the call
// site. Grounded on the teacher's ticker-driven metrics.Collector.
type Collector struct {
	tc     LeaderChecker
	hooks  QueueDepther
	stopCh chan struct{}
}

// NewCollector creates a new collector polling tc and hooks. Either may be
// nil if this node does not run that component.
func NewCollector(tc LeaderChecker, hooks QueueDepther) *Collector {
	return &Collector{
		tc:     tc,
		hooks:  hooks,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15s tick, collecting immediately on
// start.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
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
	if c.tc != nil {
		c.tc.IsLeader()
	}
	if c.hooks != nil {
		HEQueueDepth.Set(float64(c.hooks.QueueDepth()))
	}
}
