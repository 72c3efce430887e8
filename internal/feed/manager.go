package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pders01/przepisy/internal/config"
	"github.com/pders01/przepisy/internal/debuglog"
	"github.com/pders01/przepisy/internal/plugins"
	"github.com/pders01/przepisy/internal/search"
	"github.com/pders01/przepisy/internal/storage"
	"github.com/pders01/przepisy/internal/validation"
)

// Result describes one import or refresh of a source.
type Result struct {
	Source      *storage.Source
	Recipes     int
	NotModified bool
	// Skipped is set when the source was fetched within the refresh interval.
	Skipped bool
	// Pruned counts recipes dropped because the feed no longer lists them.
	Pruned int
}

type Manager struct {
	store        *storage.Store
	fetcher      *Fetcher
	parser       *Parser
	config       *config.Config
	registry     *plugins.Registry
	urlValidator *validation.SourceURLValidator
	log          *debuglog.FieldLogger

	mu              sync.RWMutex
	updateListeners []search.UpdateListener
	deleteListeners []search.DeleteListener
}

// NewManager wires an importer for store. A nil registry resolves every URL
// as a direct feed address.
func NewManager(store *storage.Store, cfg *config.Config, registry *plugins.Registry) *Manager {
	if registry == nil {
		registry = plugins.NewRegistry(cfg.Import.HTTPTimeout)
	}
	authorID := cfg.Import.AuthorID
	if authorID == "" {
		authorID = cfg.Session.UserID
	}
	return &Manager{
		store:        store,
		fetcher:      NewFetcher(cfg),
		parser:       NewParser(authorID),
		config:       cfg,
		registry:     registry,
		urlValidator: validation.NewSourceURLValidator(),
		log:          debuglog.WithFields(map[string]interface{}{"component": "feed"}),
	}
}

// SetForceRefresh configures the manager to ignore ETag/Last-Modified headers
// and the refresh interval.
func (m *Manager) SetForceRefresh(force bool) {
	m.fetcher.SetIgnoreCache(force)
}

// SetPermissiveValidation enables permissive URL validation for development/testing
func (m *Manager) SetPermissiveValidation(permissive bool) {
	if permissive {
		m.urlValidator = validation.NewPermissiveSourceURLValidator()
	} else {
		m.urlValidator = validation.NewSourceURLValidator()
	}
}

func (m *Manager) AddUpdateListener(l search.UpdateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateListeners = append(m.updateListeners, l)
}

func (m *Manager) AddDeleteListener(l search.DeleteListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteListeners = append(m.deleteListeners, l)
}

// AddSource resolves rawURL to a feed, imports its recipes and stores the
// source. Adding a known source re-imports it unconditionally.
func (m *Manager) AddSource(ctx context.Context, rawURL string) (*Result, error) {
	normalized, err := m.urlValidator.ValidateAndNormalize(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}

	info, err := m.registry.Resolve(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("resolving source: %w", err)
	}

	feedURL, err := m.urlValidator.ValidateAndNormalize(info.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL %q: %w", info.FeedURL, err)
	}

	source := &storage.Source{
		ID:      generateSourceID(feedURL),
		URL:     feedURL,
		SiteURL: info.SiteURL,
		Title:   info.Title,
	}

	resp, updated, err := m.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	if !updated || resp == nil {
		return nil, fmt.Errorf("no response received")
	}
	defer resp.Body.Close()

	parsed, err := m.parser.Parse(resp.Body, source.ID)
	if err != nil {
		return nil, err
	}

	if parsed.Title != "" {
		source.Title = parsed.Title
	}
	if source.Title == "" {
		source.Title = hostTitle(feedURL)
	}
	if parsed.SiteURL != "" {
		source.SiteURL = parsed.SiteURL
	}
	source.Description = parsed.Description
	source.UpdatedAt = time.Now()
	m.fetcher.UpdateSourceMetadata(source, resp)

	if err := m.save(source, parsed.Recipes); err != nil {
		return nil, err
	}

	m.log.Infof("imported %d recipes from %s via %s", len(parsed.Recipes), feedURL, info.Metadata["plugin"])
	return &Result{Source: source, Recipes: len(parsed.Recipes)}, nil
}

// RefreshSource re-imports a stored source unless it was fetched within the
// configured refresh interval.
func (m *Manager) RefreshSource(ctx context.Context, sourceID string) (*Result, error) {
	source, err := m.store.GetSource(sourceID)
	if err != nil {
		return nil, fmt.Errorf("getting source: %w", err)
	}

	if !m.fetcher.ignoreCache && time.Since(source.LastFetched) < m.config.Import.RefreshInterval {
		return &Result{Source: source, Skipped: true}, nil
	}

	resp, updated, err := m.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source.URL, err)
	}

	if !updated || resp == nil {
		source.LastFetched = time.Now()
		if err := m.store.SaveSource(source); err != nil {
			return nil, fmt.Errorf("saving source metadata: %w", err)
		}
		return &Result{Source: source, NotModified: true}, nil
	}
	defer resp.Body.Close()

	parsed, err := m.parser.Parse(resp.Body, source.ID)
	if err != nil {
		return nil, err
	}

	m.fetcher.UpdateSourceMetadata(source, resp)
	source.UpdatedAt = time.Now()

	if err := m.save(source, parsed.Recipes); err != nil {
		return nil, err
	}
	res := &Result{Source: source, Recipes: len(parsed.Recipes)}
	if m.config.Import.PruneMissing {
		if res.Pruned, err = m.prune(source.ID, parsed.Recipes); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// prune removes the source's stored recipes that the latest parse no longer
// lists. An empty parse prunes nothing.
func (m *Manager) prune(sourceID string, current []*storage.Recipe) (int, error) {
	if len(current) == 0 {
		return 0, nil
	}
	keep := make(map[string]struct{}, len(current))
	for _, r := range current {
		keep[r.ID] = struct{}{}
	}
	removed, err := m.store.PruneSource(sourceID, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning recipes: %w", err)
	}
	if len(removed) == 0 {
		return 0, nil
	}
	m.log.Infof("pruned %d recipes no longer in feed %s", len(removed), sourceID)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.deleteListeners {
		l.OnRecipesDeleted(removed)
	}
	return len(removed), nil
}

// RefreshAll refreshes every stored source, at most Import.Concurrency at a
// time. Failures are joined; one failing source does not stop the others.
func (m *Manager) RefreshAll(ctx context.Context) ([]*Result, error) {
	sources, err := m.store.GetAllSources()
	if err != nil {
		return nil, fmt.Errorf("getting sources: %w", err)
	}

	limit := m.config.Import.Concurrency
	if limit < 1 {
		limit = 1
	}

	var (
		g       errgroup.Group
		mu      sync.Mutex
		results []*Result
		errs    []error
	)
	g.SetLimit(limit)

	for _, source := range sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := m.RefreshSource(ctx, source.ID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.log.Warnf("refresh %s: %v", source.URL, err)
				errs = append(errs, err)
				return nil
			}
			results = append(results, res)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	return results, errors.Join(errs...)
}

// RemoveSource deletes a source and its recipes.
func (m *Manager) RemoveSource(sourceID string) error {
	ids, err := m.store.DeleteSource(sourceID)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.deleteListeners {
		l.OnRecipesDeleted(ids)
	}
	return nil
}

func (m *Manager) save(source *storage.Source, recipes []*storage.Recipe) error {
	if err := m.store.SaveSource(source); err != nil {
		return fmt.Errorf("saving source: %w", err)
	}
	if err := m.store.SaveRecipes(recipes); err != nil {
		return fmt.Errorf("saving recipes: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.updateListeners {
		l.OnDataUpdated(source, recipes)
	}
	return nil
}

func generateSourceID(feedURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(feedURL)).String()
}

func hostTitle(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return "Unknown source"
}
