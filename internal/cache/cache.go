// Package cache provides the read-through answer cache the query engine
// consults before running the pipeline. The in-memory backend is the
// default; Redis backs it when a URL is configured.
package cache

import "context"

// Cache is a string key/value store with best-effort semantics: a miss or a
// failed write never fails a query.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}
