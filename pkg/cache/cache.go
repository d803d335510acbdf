// Package cache is a size-bounded cache whose entries expire after a fixed TTL.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultTTL  = 10 * time.Minute
	defaultSize = 10000
)

type Cache[K comparable, V any] struct {
	lru *expirable.LRU[K, V]
	ttl time.Duration
}

// New builds a cache holding at most size entries for ttl each. Non-positive
// values select the defaults.
func New[K comparable, V any](size int, ttl time.Duration) *Cache[K, V] {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if size <= 0 {
		size = defaultSize
	}
	return &Cache[K, V]{lru: expirable.NewLRU[K, V](size, nil, ttl), ttl: ttl}
}

func (c *Cache[K, V]) Get(key K) (V, bool) { return c.lru.Get(key) }

func (c *Cache[K, V]) Set(key K, value V) { c.lru.Add(key, value) }

func (c *Cache[K, V]) Delete(key K) { c.lru.Remove(key) }

func (c *Cache[K, V]) Len() int { return c.lru.Len() }

func (c *Cache[K, V]) TTL() time.Duration { return c.ttl }
