// Package cache keeps provider model lists in memory between refreshes.
package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/aicommits/aicommits/internal/pkg/security"
)

const (
	// DefaultMaxEntries is the default maximum number of cache entries.
	DefaultMaxEntries = 100
	// DefaultTTL is the default time-to-live for cache entries.
	DefaultTTL = 1 * time.Hour
)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Manager is the cache surface used by the provider layer.
type Manager[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	Delete(key string)
	Clear()
	Size() int
}

// LRUCache is an in-memory LRU cache with per-entry TTL.
type LRUCache[V any] struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time
}

var _ Manager[[]string] = (*LRUCache[[]string])(nil)

// NewLRUCache creates a cache; non-positive arguments select the defaults.
func NewLRUCache[V any](maxEntries int, defaultTTL time.Duration) *LRUCache[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &LRUCache[V]{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if e.expired(c.now()) {
		c.remove(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores value under key. A non-positive ttl selects the default TTL.
func (c *LRUCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	expiresAt := c.now().Add(ttl)

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxEntries {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}
	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
}

// Delete removes key from the cache.
func (c *LRUCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// DeletePrefix removes every key starting with prefix and returns how many
// were dropped.
func (c *LRUCache[V]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, el := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.remove(el)
			removed++
		}
	}
	return removed
}

// Clear removes all entries from the cache.
func (c *LRUCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Size returns the number of entries in the cache.
func (c *LRUCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CleanExpired removes all expired entries and returns how many were dropped.
func (c *LRUCache[V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, el := range c.items {
		if el.Value.(*entry[V]).expired(now) {
			c.remove(el)
			removed++
		}
	}
	return removed
}

// remove must be called with mu held.
func (c *LRUCache[V]) remove(el *list.Element) {
	delete(c.items, el.Value.(*entry[V]).key)
	c.order.Remove(el)
}

// ModelListKey builds the key for a provider's model list. The token only
// enters the key as a digest, and different tokens against the same host get
// separate entries since model visibility is per account.
func ModelListKey(provider, host, token string) string {
	return provider + "|" + strings.TrimRight(host, "/") + "|" + security.Fingerprint(token)
}

// ProviderPrefix is the key prefix shared by every entry of one provider.
func ProviderPrefix(provider string) string {
	return provider + "|"
}
