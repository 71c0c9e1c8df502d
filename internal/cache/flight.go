/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package cache

import (
    "sync"

    "golang.org/x/sync/singleflight"
)

// Flight is the in-flight request registry. A caller asking for a key that is
// already being resolved waits on the pending call and receives its result
// instead of issuing its own network round trip.
type Flight[V any] struct {
    mu sync.Mutex
    g  *singleflight.Group
}

func NewFlight[V any]() *Flight[V] { return &Flight[V]{g: &singleflight.Group{}} }

// Do runs fn once per key among concurrent callers. shared reports whether the
// result was handed to more than one caller.
func (f *Flight[V]) Do(key string, fn func() (V, error)) (v V, shared bool, err error) {
    f.mu.Lock()
    g := f.g
    f.mu.Unlock()
    out, err, shared := g.Do(key, func() (any, error) { return fn() })
    if out != nil { v = out.(V) }
    return v, shared, err
}

// Reset detaches every pending call. Pending callers still get their result,
// new callers start a fresh resolution.
func (f *Flight[V]) Reset() {
    f.mu.Lock(); defer f.mu.Unlock()
    f.g = &singleflight.Group{}
}
