package cache

import (
	"sync"

	"github.com/berfenger/sense2homekit/internal/core/domain"
)

// ReadingCache holds the last accepted reading. The power meter actor is the
// only writer; HomeKit and HTTP handlers read it from their own goroutines.
type ReadingCache struct {
	reading domain.Reading
	mutex   sync.RWMutex
}

func New() *ReadingCache {
	return &ReadingCache{}
}

func (c *ReadingCache) Get() domain.Reading {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.reading
}

func (c *ReadingCache) Watts() float64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.reading.PowerWatts
}

func (c *ReadingCache) Set(reading domain.Reading) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.reading = reading
}
