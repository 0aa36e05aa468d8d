// Package cache provides a generic thread-safe cache with least-recently-used
// eviction, used to hold build artifacts keyed by file with their output digest.
package cache
