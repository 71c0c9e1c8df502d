/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
    "errors"
    "fmt"
)

var (
    ErrMalformedKey = errors.New("malformed issue key")
    // ErrUnavailable means the result could not be computed; callers show no badge.
    ErrUnavailable = errors.New("result unavailable")
)

type MalformedKeyError struct{ Key string }

func (e *MalformedKeyError) Error() string { return fmt.Sprintf("malformed issue key %q", e.Key) }
func (e *MalformedKeyError) Is(target error) bool { return target == ErrMalformedKey }

// TransportError wraps a network failure or a non-success HTTP status from the tracker.
type TransportError struct {
    Op     string
    Status int
    Body   string
    Err    error
}

func (e *TransportError) Error() string {
    if e.Status != 0 { return fmt.Sprintf("jira %s: status=%d body=%s", e.Op, e.Status, e.Body) }
    return fmt.Sprintf("jira %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable is true for transport failures and 429/5xx responses.
func (e *TransportError) Retryable() bool {
    return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

type NotFoundError struct{ What string }

func (e *NotFoundError) Error() string { return e.What + " not found" }
