package goofflinecache

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/gifterapp/go-offline-cache/caches"
)

const defaultFillTimeout = 30 * time.Second

// OfflineTransport implements http.RoundTripper and provides network-first
// caching with offline fallback for GET requests. A live response always
// wins; the cache only answers when the network cannot.
type OfflineTransport struct {
	Wrapped http.RoundTripper

	store  Store
	logger *slog.Logger
	now    func() time.Time

	c Config
}

// RoundTrip implements http.RoundTripper interface and handles the offline
// caching logic for outgoing requests.
//
// The process follows these steps:
// 1. Non-GET requests pass through untouched
// 2. GET requests go to the network first
// 3. Live responses return immediately; their snapshot is written to the
// current generation in the background
// 4. Failed round trips fall back to the cached snapshot, then the offline
// page, then a synthetic 503.
func (t *OfflineTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Method != http.MethodGet {
		return t.Wrapped.RoundTrip(r)
	}

	ctx := r.Context()
	key := caches.Key(r)

	resp, transportError := t.Wrapped.RoundTrip(r)
	if transportError == nil {
		t.fill(ctx, key, resp)
		return resp, nil
	}

	// network failed; this is where the cache earns its keep
	t.logger.DebugContext(ctx, "network fetch failed, falling back to cache",
		"url", r.URL.String(),
		"error", transportError)

	item, err := t.store.Get(ctx, t.c.Version, key)
	if err == nil {
		t.logger.DebugContext(ctx, "serving cached response", "url", r.URL.String())
		return readSnapshot(item, r)
	}
	if !errors.Is(err, caches.ErrNoCacheItem) {
		t.logger.WarnContext(ctx, "error reading cache", "url", r.URL.String(), "error", err)
	}

	fallback := r.URL.ResolveReference(&url.URL{Path: t.c.OfflinePath})
	item, err = t.store.Get(ctx, t.c.Version, caches.KeyFor(http.MethodGet, fallback.String()))
	if err == nil {
		t.logger.DebugContext(ctx, "serving offline page", "url", r.URL.String())
		return readSnapshot(item, r)
	}

	t.logger.DebugContext(ctx, "offline page missing from cache", "url", r.URL.String())
	return unavailableResponse(r), nil
}

// fill snapshots a live response into the current generation without
// blocking the caller. Response bodies are single-read streams;
// httputil.DumpResponse drains the body and hands the caller back an
// in-memory copy, so only the store write runs in the background.
func (t *OfflineTransport) fill(ctx context.Context, key string, resp *http.Response) {
	dump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		t.logger.WarnContext(ctx, "error snapshotting response", "key", key, "error", err)
		return
	}

	item := &CacheItem{
		Response: dump,
		StoredAt: t.now().UTC(),
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultFillTimeout)
	go func() {
		defer cancel()
		if cacheErr := t.store.Set(wctx, t.c.Version, key, item); cacheErr != nil {
			t.logger.Warn("error caching response", "key", key, "error", cacheErr)
		}
	}()
}

func readSnapshot(item *CacheItem, r *http.Request) (*http.Response, error) {
	nr := bufio.NewReader(bytes.NewReader(item.Response))
	return http.ReadResponse(nr, r)
}

// unavailableResponse is the explicit stand-in for the case where neither
// the network, the cache, nor the offline page can answer.
func unavailableResponse(r *http.Request) *http.Response {
	body := "offline and no cached copy available\n"
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable)),
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
}

// New creates a transport middleware that adds offline caching capabilities
// to an HTTP RoundTripper.
//
// The middleware uses the provided Store for response snapshots, keyed by
// the generation named in the configuration. If the 'now' function is nil,
// time.Now will be used as the default time provider. If the 'logger' is
// nil, a no-op logger writing to io.Discard will be used.
//
// The returned function wraps the given http.RoundTripper with offline
// caching functionality:
//   - GET requests are tried against the live network first
//   - Successful responses are snapshotted into the current generation
//     without delaying the caller
//   - Failed round trips are answered from the cache, then the offline page
//   - All other methods pass through untouched
func New(
	store Store,
	opts *Config,
	now func() time.Time,
	logger *slog.Logger,
) func(http.RoundTripper) http.RoundTripper {
	nowFunc := now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := Config{}
	if opts == nil {
		c = DefaultConfig()
	} else {
		c = *opts
	}

	return func(rt http.RoundTripper) http.RoundTripper {
		return &OfflineTransport{Wrapped: rt, store: store, now: nowFunc, logger: logger, c: c}
	}
}
