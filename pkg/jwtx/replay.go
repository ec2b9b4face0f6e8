package jwtx

import "sync"

// ReplayCache is a bounded, insertion-ordered set of previously seen token
// nonces. Eviction is FIFO on insertion order, not on use: a nonce stays
// exactly as long as its position in the queue, however often it is probed.
//
// The cache is process-local. A horizontally scaled deployment needs a
// shared store with conditional writes instead; single-instance is the
// supported default.
type ReplayCache struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	max   int
}

// NewReplayCache returns an empty cache bounded to max entries.
// A non-positive max falls back to DefaultReplayCacheSize.
func NewReplayCache(max int) *ReplayCache {
	if max <= 0 {
		max = DefaultReplayCacheSize
	}
	return &ReplayCache{
		seen: make(map[string]struct{}, max),
		max:  max,
	}
}

// CheckAndRemember reports whether nonce is fresh and, if so, records it in
// the same critical section. Two racing calls with the same nonce can never
// both observe it as fresh; this is what makes the validator's
// one-success-per-nonce guarantee hold under concurrency.
func (c *ReplayCache) CheckAndRemember(nonce string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.seen[nonce]; dup {
		return false
	}

	c.seen[nonce] = struct{}{}
	c.order = append(c.order, nonce)

	if len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
	}
	return true
}

// Contains reports whether nonce has been seen, without recording anything.
func (c *ReplayCache) Contains(nonce string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[nonce]
	return ok
}

// Len returns the current number of remembered nonces.
func (c *ReplayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
