package currency

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RateCache is a read-mostly map of directional rates with a fixed TTL.
// Every Invalidate bumps the generation; a Set carrying an older generation is
// dropped so that a read which started before a store commit cannot put the
// superseded rate back after the commit invalidated it.
type RateCache struct {
	mu         sync.RWMutex
	rates      map[string]cachedRate
	ttl        time.Duration
	generation uint64
	now        func() time.Time
}

type cachedRate struct {
	rate      decimal.Decimal
	timestamp time.Time
}

func NewRateCache(ttl time.Duration) *RateCache {
	return &RateCache{
		rates: make(map[string]cachedRate),
		ttl:   ttl,
		now:   time.Now,
	}
}

func cacheKey(from, to string) string {
	return from + "_" + to
}

func (c *RateCache) Get(from, to string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, exists := c.rates[cacheKey(from, to)]
	if !exists || c.now().Sub(cached.timestamp) > c.ttl {
		return decimal.Decimal{}, false
	}
	return cached.rate, true
}

// Generation returns the token a reader must pass to Set.
func (c *RateCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *RateCache) Set(from, to string, rate decimal.Decimal, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return false
	}
	c.rates[cacheKey(from, to)] = cachedRate{rate: rate, timestamp: c.now()}
	return true
}

func (c *RateCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rates = make(map[string]cachedRate)
	c.generation++
}

func (c *RateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rates)
}
