package plugins

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// SourceInfo is what a plugin knows about a recipe blog before its feed is
// fetched.
type SourceInfo struct {
	// Original URL that was requested
	OriginalURL string
	// FeedURL is the RSS/Atom endpoint to import from
	FeedURL string
	// SiteURL is the blog's home page
	SiteURL     string
	Title       string
	Description string
	Metadata    map[string]string
}

// Plugin resolves blog addresses of a particular host or platform to feeds.
type Plugin interface {
	Name() string

	// CanHandle returns true if this plugin can handle the given URL
	CanHandle(url string) bool

	// Resolve may perform HTTP requests with client to discover the feed.
	Resolve(ctx context.Context, url string, client *http.Client) (*SourceInfo, error)

	// Priority returns the priority of this plugin (higher = higher priority)
	Priority() int
}

// Registry manages all registered plugins
type Registry struct {
	plugins []Plugin
	client  *http.Client
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		client: &http.Client{Timeout: timeout},
	}
}

func (r *Registry) Register(plugin Plugin) {
	r.plugins = append(r.plugins, plugin)
}

// FindPlugin returns the highest priority plugin that can handle url, or nil.
// Ties go to the plugin registered first.
func (r *Registry) FindPlugin(url string) Plugin {
	var best Plugin
	for _, p := range r.plugins {
		if p.CanHandle(url) && (best == nil || p.Priority() > best.Priority()) {
			best = p
		}
	}
	return best
}

// Resolve returns source information for url. Without a matching plugin the
// URL is assumed to already be a feed.
func (r *Registry) Resolve(ctx context.Context, url string) (*SourceInfo, error) {
	plugin := r.FindPlugin(url)
	if plugin == nil {
		return &SourceInfo{
			OriginalURL: url,
			FeedURL:     url,
			Metadata:    map[string]string{},
		}, nil
	}
	return plugin.Resolve(ctx, url, r.client)
}

// ListPlugins returns all registered plugins ordered by priority.
func (r *Registry) ListPlugins() []Plugin {
	out := append([]Plugin(nil), r.plugins...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority() > out[j].Priority() })
	return out
}
