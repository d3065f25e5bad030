package goofflinecache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gifterapp/go-offline-cache/caches"
)

// Manager drives the lifecycle of the offline cache. Install precaches the
// configured assets into the current generation, Activate purges every stale
// generation. Both are idempotent and safe to re-run after a failure.
type Manager struct {
	store  Store
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	c Config
}

// NewManager creates a manager for the given store and configuration.
//
// If 'opts' is nil, DefaultConfig is used. If 'client' is nil,
// http.DefaultClient performs the precache fetches. If 'logger' is nil, a
// no-op logger writing to io.Discard is used.
func NewManager(store Store, opts *Config, client *http.Client, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, caches.ValidationError{
			Reason: "nil store",
		}
	}

	c := Config{}
	if opts == nil {
		c = DefaultConfig()
	} else {
		c = *opts
	}

	if c.Version == "" {
		return nil, caches.ValidationError{
			Reason: "empty version",
		}
	}

	if client == nil {
		client = http.DefaultClient
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Manager{
		store:  store,
		client: client,
		logger: logger,
		now:    time.Now,

		c: c,
	}, nil
}

// Install fetches every precache path and stores the snapshots into the
// current generation. Every fetch must succeed before the first write
// happens, so a failed install leaves the store untouched and can simply be
// retried.
func (m *Manager) Install(ctx context.Context) error {
	type staged struct {
		key  string
		item *CacheItem
	}

	items := make([]staged, 0, len(m.c.Precache))
	for _, p := range m.c.Precache {
		u, err := m.resolve(p)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}

		resp, err := m.client.Do(req)
		if err != nil {
			return fmt.Errorf("precache %s: %w", p, err)
		}

		dump, err := httputil.DumpResponse(resp, true)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("precache %s: %w", p, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("precache %s: unexpected status %s", p, resp.Status)
		}

		items = append(items, staged{
			key: caches.Key(req),
			item: &CacheItem{
				Response: dump,
				StoredAt: m.now().UTC(),
			},
		})
	}

	for _, s := range items {
		if err := m.store.Set(ctx, m.c.Version, s.key, s.item); err != nil {
			return fmt.Errorf("precache store: %w", err)
		}
	}

	m.logger.InfoContext(ctx, "install complete", "generation", m.c.Version, "assets", len(items))
	return nil
}

// Activate deletes every generation whose name differs from the current
// version. After it returns, the current generation is the only one left.
func (m *Manager) Activate(ctx context.Context) error {
	names, err := m.store.Generations(ctx)
	if err != nil {
		return err
	}

	for _, name := range names {
		if name == m.c.Version {
			continue
		}

		if err := m.store.DeleteGeneration(ctx, name); err != nil {
			return fmt.Errorf("delete generation %s: %w", name, err)
		}

		m.logger.InfoContext(ctx, "deleted stale generation", "generation", name)
	}

	return nil
}

// Run performs Install followed immediately by Activate, the equivalent of a
// worker that skips the waiting stage and claims its clients right away.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Install(ctx); err != nil {
		return err
	}
	return m.Activate(ctx)
}

func (m *Manager) resolve(p string) (string, error) {
	if m.c.Origin == "" {
		return "", caches.ValidationError{
			Reason: "empty origin",
		}
	}

	base, err := url.Parse(m.c.Origin)
	if err != nil {
		return "", err
	}

	ref, err := url.Parse(p)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(ref).String(), nil
}
