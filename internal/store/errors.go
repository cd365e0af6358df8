package store

import "errors"

// ErrStoreUnavailable is returned by durable writes while the store is in
// degraded mode. Reads never return it; they return empty results instead.
var ErrStoreUnavailable = errors.New("store unavailable: storage medium failed to initialize")

// ErrTransactionFailed wraps a multi-collection write that rolled back.
// Callers must treat the operation as if nothing happened.
var ErrTransactionFailed = errors.New("transaction failed")
