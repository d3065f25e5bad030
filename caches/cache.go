package caches

import (
	"fmt"
	"net/http"
	"time"
)

var (
	// DefaultItemRetention is how long backends keep items before the
	// optional cleanup task removes them.
	DefaultItemRetention = 30 * 24 * time.Hour

	// DefaultCleanupTimer is the default interval of the cleanup task
	DefaultCleanupTimer = 10 * time.Minute
)

// Key derives the cache key for a request: method and absolute URL.
func Key(r *http.Request) string {
	return KeyFor(r.Method, r.URL.String())
}

// KeyFor builds the same key from its raw parts.
func KeyFor(method, url string) string {
	return fmt.Sprintf("%s#%s", method, url)
}
