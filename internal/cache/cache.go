/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package cache

import (
    "sync"

    "github.com/HamedShams/jira-lens/internal/domain"
)

// Key addresses one cached result. Scope is the board id for membership
// results and empty for classification results.
type Key struct {
    Scope domain.BoardID
    Issue domain.IssueKey
}

func (k Key) String() string {
    if k.Scope == "" { return string(k.Issue) }
    return string(k.Scope) + ":" + string(k.Issue)
}

// Cache is a flat map with no eviction and no expiry. Entries live until Clear.
type Cache[V any] struct {
    mu sync.RWMutex
    m  map[Key]V
}

func New[V any]() *Cache[V] { return &Cache[V]{m: map[Key]V{}} }

func (c *Cache[V]) Get(k Key) (V, bool) {
    c.mu.RLock(); defer c.mu.RUnlock()
    v, ok := c.m[k]
    return v, ok
}

func (c *Cache[V]) Set(k Key, v V) {
    c.mu.Lock(); defer c.mu.Unlock()
    c.m[k] = v
}

func (c *Cache[V]) Clear() {
    c.mu.Lock(); defer c.mu.Unlock()
    c.m = map[Key]V{}
}

func (c *Cache[V]) Len() int {
    c.mu.RLock(); defer c.mu.RUnlock()
    return len(c.m)
}
