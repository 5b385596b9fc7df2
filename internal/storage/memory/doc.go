// Package memory provides the in-memory key-value store.
//
// The store is a single map guarded by one exclusive mutex. Entries carry
// an optional absolute expiry in Unix milliseconds; expiration is strictly
// passive. An expired entry is discovered and removed on the next Get of
// that key, never by a background sweep, so memory held by expired but
// unaccessed keys is reclaimed only on access.
package memory
