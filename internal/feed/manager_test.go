package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/przepisy/internal/config"
	"github.com/pders01/przepisy/internal/plugins"
	"github.com/pders01/przepisy/internal/plugins/user"
	"github.com/pders01/przepisy/internal/storage"
)

func setupManager(t *testing.T) (*Manager, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "feed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	manager := NewManager(store, config.TestConfig(), nil)
	manager.SetPermissiveValidation(true)
	return manager, store
}

// feedServer serves sampleRSS with an ETag and answers conditional requests
// with 304.
func feedServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

type recordingListener struct {
	mu      sync.Mutex
	updated []string
	deleted []string
}

func (l *recordingListener) OnDataUpdated(_ *storage.Source, recipes []*storage.Recipe) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range recipes {
		l.updated = append(l.updated, r.ID)
	}
}

func (l *recordingListener) OnRecipesDeleted(ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleted = append(l.deleted, ids...)
}

func TestManager_AddSource(t *testing.T) {
	manager, store := setupManager(t)
	server, _ := feedServer(t)
	listener := &recordingListener{}
	manager.AddUpdateListener(listener)

	res, err := manager.AddSource(context.Background(), server.URL+"/feed")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Recipes)
	assert.Equal(t, "Kuchnia Basi", res.Source.Title)
	assert.Equal(t, "https://kuchniabasi.pl", res.Source.SiteURL)
	assert.Equal(t, `"v1"`, res.Source.ETag)

	saved, err := store.GetSource(res.Source.ID)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/feed", saved.URL)

	all, err := store.GetAllRecipes()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "importer", all[0].AuthorID)
	assert.Len(t, listener.updated, 2)
}

func TestManager_AddSourceIsIdempotent(t *testing.T) {
	manager, store := setupManager(t)
	server, _ := feedServer(t)

	first, err := manager.AddSource(context.Background(), server.URL)
	require.NoError(t, err)
	second, err := manager.AddSource(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, first.Source.ID, second.Source.ID)
	all, err := store.GetAllRecipes()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestManager_AddSourceRejectsLocalhostByDefault(t *testing.T) {
	manager, _ := setupManager(t)
	manager.SetPermissiveValidation(false)

	_, err := manager.AddSource(context.Background(), "http://localhost:8080/feed")
	assert.ErrorContains(t, err, "invalid source URL")
}

func TestManager_AddSourceHTTPError(t *testing.T) {
	manager, store := setupManager(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := manager.AddSource(context.Background(), server.URL)
	require.Error(t, err)

	sources, err := store.GetAllSources()
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestManager_AddSourceViaDiscovery(t *testing.T) {
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "feed.db"))
	require.NoError(t, err)
	defer store.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, `<html><head><link rel="alternate" type="application/rss+xml" href="/rss"></head></html>`)
	})
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRSS))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := config.TestConfig()
	registry := plugins.NewRegistry(cfg.Import.HTTPTimeout)
	user.RegisterBuiltins(registry)

	manager := NewManager(store, cfg, registry)
	manager.SetPermissiveValidation(true)

	res, err := manager.AddSource(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/rss", res.Source.URL)
	assert.Equal(t, 2, res.Recipes)
}

func TestManager_RefreshSource(t *testing.T) {
	manager, _ := setupManager(t)
	server, hits := feedServer(t)

	added, err := manager.AddSource(context.Background(), server.URL)
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(hits))

	t.Run("skipped within refresh interval", func(t *testing.T) {
		res, err := manager.RefreshSource(context.Background(), added.Source.ID)
		require.NoError(t, err)
		assert.True(t, res.Skipped)
		assert.EqualValues(t, 1, atomic.LoadInt32(hits))
	})

	t.Run("forced refresh ignores cache headers", func(t *testing.T) {
		manager.SetForceRefresh(true)
		defer manager.SetForceRefresh(false)

		res, err := manager.RefreshSource(context.Background(), added.Source.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Recipes)
		assert.False(t, res.NotModified)
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := manager.RefreshSource(context.Background(), "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestManager_RefreshNotModified(t *testing.T) {
	manager, store := setupManager(t)
	server, _ := feedServer(t)

	require.NoError(t, store.SaveSource(&storage.Source{ID: "s1", URL: server.URL, ETag: `"v1"`}))

	res, err := manager.RefreshSource(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, res.NotModified)

	saved, err := store.GetSource("s1")
	require.NoError(t, err)
	assert.False(t, saved.LastFetched.IsZero())
}

// rollingFeed lists the given post titles, newest first.
func rollingFeed(titles ...string) string {
	var items string
	for _, title := range titles {
		items += fmt.Sprintf("<item><title>%s</title><link>https://blog.example/%s</link><guid>%s</guid></item>", title, title, title)
	}
	return `<?xml version="1.0"?><rss version="2.0"><channel><title>Blog</title>` + items + `</channel></rss>`
}

func TestManager_RefreshPrunesMissingRecipes(t *testing.T) {
	tests := []struct {
		name      string
		prune     bool
		wantNames []string
		wantGone  int
	}{
		{"kept by default", false, []string{"bigos", "golabki", "zurek"}, 0},
		{"pruned when enabled", true, []string{"bigos", "zurek"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, store := setupManager(t)
			manager.config.Import.PruneMissing = tt.prune
			listener := &recordingListener{}
			manager.AddDeleteListener(listener)

			var mu sync.Mutex
			body := rollingFeed("golabki", "zurek")
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				defer mu.Unlock()
				w.Header().Set("Content-Type", "application/rss+xml")
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			added, err := manager.AddSource(context.Background(), server.URL)
			require.NoError(t, err)
			require.Equal(t, 2, added.Recipes)

			mu.Lock()
			body = rollingFeed("bigos", "zurek")
			mu.Unlock()

			manager.SetForceRefresh(true)
			res, err := manager.RefreshSource(context.Background(), added.Source.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantGone, res.Pruned)
			assert.Len(t, listener.deleted, tt.wantGone)

			all, err := store.GetAllRecipes()
			require.NoError(t, err)
			var names []string
			for _, r := range all {
				names = append(names, r.Name)
			}
			assert.ElementsMatch(t, tt.wantNames, names)
		})
	}
}

func TestManager_PruneIgnoresEmptyFeed(t *testing.T) {
	manager, store := setupManager(t)
	manager.config.Import.PruneMissing = true

	require.NoError(t, store.SaveSource(&storage.Source{ID: "s1"}))
	require.NoError(t, store.SaveRecipes([]*storage.Recipe{{ID: "a", Name: "A", SourceID: "s1"}}))

	pruned, err := manager.prune("s1", nil)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	all, err := store.GetAllRecipes()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestManager_RefreshAll(t *testing.T) {
	manager, store := setupManager(t)
	good, _ := feedServer(t)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	for i := 0; i < 4; i++ {
		require.NoError(t, store.SaveSource(&storage.Source{
			ID:  fmt.Sprintf("good-%d", i),
			URL: fmt.Sprintf("%s/feed/%d", good.URL, i),
		}))
	}
	require.NoError(t, store.SaveSource(&storage.Source{ID: "bad", URL: bad.URL}))

	results, err := manager.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Len(t, results, 4)
}

func TestManager_RefreshAllEmpty(t *testing.T) {
	manager, _ := setupManager(t)
	results, err := manager.RefreshAll(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestManager_RemoveSource(t *testing.T) {
	manager, store := setupManager(t)
	server, _ := feedServer(t)
	listener := &recordingListener{}
	manager.AddDeleteListener(listener)

	res, err := manager.AddSource(context.Background(), server.URL)
	require.NoError(t, err)

	require.NoError(t, manager.RemoveSource(res.Source.ID))
	assert.Len(t, listener.deleted, 2)

	all, err := store.GetAllRecipes()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGenerateSourceID(t *testing.T) {
	a := generateSourceID("https://a.pl/feed")
	assert.Equal(t, a, generateSourceID("https://a.pl/feed"))
	assert.NotEqual(t, a, generateSourceID("https://b.pl/feed"))
}
