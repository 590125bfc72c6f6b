package data

import (
	"sync"
	"time"
)

// Clock hands out strictly increasing millisecond timestamps.
// Several writes within one millisecond are pushed forward by one
// so that "greatest timestamp wins" never has to break a tie.
type Clock struct {
	mu   sync.Mutex
	last int64
}

func NewClock() *Clock {
	return &Clock{}
}

func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := time.Now().UnixMilli()
	if ts <= c.last {
		ts = c.last + 1
	}

	c.last = ts

	return ts
}

// Observe makes sure future timestamps are greater than ts
func (c *Clock) Observe(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ts > c.last {
		c.last = ts
	}
}
