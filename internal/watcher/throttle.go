package watcher

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultThrottleWindow   = 3000 * time.Millisecond
	DefaultThrottleCapacity = 256
	MaxThrottleCapacity     = 1 << 16

	ThrottlePolicyNone = "none"
	ThrottlePolicyLRU  = "lru"
)

// AccessThrottle decides whether an access record for path is logged.
type AccessThrottle interface {
	ShouldThrottle(path string) bool
}

// NewAccessThrottle builds the throttle for a policy. "none" keeps records
// until the table is full and then stops tracking new paths; "lru" evicts
// the least recently used record instead.
func NewAccessThrottle(policy string, window time.Duration, capacity int, now func() time.Time) (AccessThrottle, error) {
	switch policy {
	case "", ThrottlePolicyNone:
		return NewThrottleCache(window, capacity, now), nil
	case ThrottlePolicyLRU:
		return NewLRUThrottle(window, capacity, now)
	default:
		return nil, fmt.Errorf("unknown throttle policy %q", policy)
	}
}

type accessRecord struct {
	path         string
	lastLoggedAt time.Time
	used         bool
}

// ThrottleCache is a fixed-size open addressing table keyed by path hash.
// The slot array is allocated once; records are never removed.
type ThrottleCache struct {
	window   time.Duration
	capacity int
	count    int
	slots    []accessRecord
	mask     uint64
	now      func() time.Time
}

func NewThrottleCache(window time.Duration, capacity int, now func() time.Time) *ThrottleCache {
	if window <= 0 {
		window = DefaultThrottleWindow
	}
	capacity = clampThrottleCapacity(capacity)
	if now == nil {
		now = time.Now
	}
	// At least twice the capacity so probing always finds a free slot.
	size := 1
	for size < capacity*2 {
		size <<= 1
	}
	return &ThrottleCache{
		window:   window,
		capacity: capacity,
		slots:    make([]accessRecord, size),
		mask:     uint64(size - 1),
		now:      now,
	}
}

func (cache *ThrottleCache) ShouldThrottle(path string) bool {
	now := cache.now()
	record := &cache.slots[cache.slotFor(path)]
	if record.used {
		if now.Sub(record.lastLoggedAt) < cache.window {
			return true
		}
		record.lastLoggedAt = now
		return false
	}
	if cache.count < cache.capacity {
		*record = accessRecord{path: path, lastLoggedAt: now, used: true}
		cache.count++
	}
	return false
}

// Len reports the number of tracked paths.
func (cache *ThrottleCache) Len() int {
	return cache.count
}

func (cache *ThrottleCache) slotFor(path string) uint64 {
	index := xxhash.Sum64String(path) & cache.mask
	for {
		slot := &cache.slots[index]
		if !slot.used || slot.path == path {
			return index
		}
		index = (index + 1) & cache.mask
	}
}

// LRUThrottle applies the same window but evicts the least recently used
// path when full, so new paths keep being throttled.
type LRUThrottle struct {
	window time.Duration
	cache  *lru.Cache[string, time.Time]
	now    func() time.Time
}

func NewLRUThrottle(window time.Duration, capacity int, now func() time.Time) (*LRUThrottle, error) {
	if window <= 0 {
		window = DefaultThrottleWindow
	}
	capacity = clampThrottleCapacity(capacity)
	if now == nil {
		now = time.Now
	}
	cache, err := lru.New[string, time.Time](capacity)
	if err != nil {
		return nil, err
	}
	return &LRUThrottle{window: window, cache: cache, now: now}, nil
}

func (throttle *LRUThrottle) ShouldThrottle(path string) bool {
	now := throttle.now()
	if last, ok := throttle.cache.Get(path); ok && now.Sub(last) < throttle.window {
		return true
	}
	throttle.cache.Add(path, now)
	return false
}

func (throttle *LRUThrottle) Len() int {
	return throttle.cache.Len()
}

func clampThrottleCapacity(capacity int) int {
	if capacity <= 0 {
		return DefaultThrottleCapacity
	}
	return min(capacity, MaxThrottleCapacity)
}
