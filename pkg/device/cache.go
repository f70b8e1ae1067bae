package device

import "sync/atomic"

// cache holds the configuration a device object last intended to be
// active. Reads never block.
type cache[C any] struct {
	v atomic.Pointer[C]
}

func newCache[C any](initial C) *cache[C] {
	c := &cache[C]{}
	c.write(initial)
	return c
}

func (c *cache[C]) read() C {
	return *c.v.Load()
}

func (c *cache[C]) write(cfg C) {
	c.v.Store(&cfg)
}
