package generation

import (
	"sync"
	"time"
)

// Clock hands out batch timestamps in Unix milliseconds.
type Clock interface {
	NowMillis() int64
}

// MonotonicClock never returns the same value twice within a process, so two
// batches started in the same millisecond still get distinct keys.
type MonotonicClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

func (c *MonotonicClock) NowMillis() int64 {
	ts := c.now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}
