/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package retry

import (
    "context"
    "errors"
    "time"
)

// Policy is a bounded, fixed-delay retry plan. It carries no scheduler of its
// own; Do sleeps on a timer and honors ctx.
type Policy struct {
    MaxAttempts int
    Delay       time.Duration
}

// Once never retries.
var Once = Policy{MaxAttempts: 1}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
    if err == nil { return nil }
    return permanent{err: err}
}

func (p Policy) attempts() int {
    if p.MaxAttempts < 1 { return 1 }
    return p.MaxAttempts
}

// Do calls fn until it returns nil, returns a Permanent error, or the attempts
// run out. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
    var lastErr error
    n := p.attempts()
    for attempt := 0; attempt < n; attempt++ {
        if attempt > 0 && p.Delay > 0 {
            t := time.NewTimer(p.Delay)
            select {
            case <-ctx.Done():
                t.Stop()
                return ctx.Err()
            case <-t.C:
            }
        }
        err := fn(attempt)
        if err == nil { return nil }
        var perm permanent
        if errors.As(err, &perm) { return perm.err }
        lastErr = err
        if ctx.Err() != nil { return lastErr }
    }
    return lastErr
}
