// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"sync"
	"time"
)

// Cooldown tracks the last time each key performed a rate-limited action.
// A key is active until its TTL has elapsed since the last Touch. The TTL
// may be changed at runtime; the new value applies to existing entries.
type Cooldown[K comparable] struct {
	mu   sync.Mutex
	last map[K]time.Time
	ttl  time.Duration

	// now is swappable for tests
	now func() time.Time
}

// NewCooldown returns a tracker with the given TTL
func NewCooldown[K comparable](ttl time.Duration) *Cooldown[K] {
	return &Cooldown[K]{
		last: make(map[K]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// SetTTL changes the cooldown duration
func (c *Cooldown[K]) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// TTL returns the current cooldown duration
func (c *Cooldown[K]) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

// Active reports whether the key is still inside its cooldown window
func (c *Cooldown[K]) Active(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.last[key]
	if !ok {
		return false
	}
	if c.now().Sub(at) >= c.ttl {
		delete(c.last, key)
		return false
	}
	return true
}

// Remaining returns how long until the key's cooldown expires, or zero if it
// is not active
func (c *Cooldown[K]) Remaining(key K) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.last[key]
	if !ok {
		return 0
	}
	remaining := c.ttl - c.now().Sub(at)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Touch restarts the key's cooldown window
func (c *Cooldown[K]) Touch(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[key] = c.now()
}
