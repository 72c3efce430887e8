// Package user holds the built-in source plugins for common recipe blog
// platforms.
package user

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pders01/przepisy/internal/plugins"
)

// RegisterBuiltins adds every plugin in this package to registry.
func RegisterBuiltins(registry *plugins.Registry) {
	registry.Register(NewWordPressPlugin())
	registry.Register(NewBloggerPlugin())
	registry.Register(NewDiscoveryPlugin())
}

// WordPressPlugin handles blogs hosted on wordpress.com, whose feed lives
// under /feed/.
type WordPressPlugin struct{}

func NewWordPressPlugin() *WordPressPlugin {
	return &WordPressPlugin{}
}

func (p *WordPressPlugin) Name() string {
	return "wordpress"
}

func (p *WordPressPlugin) CanHandle(rawURL string) bool {
	host := hostOf(rawURL)
	return host == "wordpress.com" || strings.HasSuffix(host, ".wordpress.com")
}

func (p *WordPressPlugin) Priority() int {
	return 50
}

func (p *WordPressPlugin) Resolve(_ context.Context, rawURL string, _ *http.Client) (*plugins.SourceInfo, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	path := strings.TrimSuffix(u.Path, "/")
	path = strings.TrimSuffix(path, "/feed")
	site := u.Scheme + "://" + u.Host + path
	blog := strings.TrimSuffix(u.Hostname(), ".wordpress.com")

	return &plugins.SourceInfo{
		OriginalURL: rawURL,
		FeedURL:     site + "/feed/",
		SiteURL:     site + "/",
		Title:       blog,
		Metadata: map[string]string{
			"plugin": "wordpress",
			"blog":   blog,
		},
	}, nil
}

// BloggerPlugin handles *.blogspot.* blogs, which publish their posts as an
// Atom feed at /feeds/posts/default.
type BloggerPlugin struct{}

func NewBloggerPlugin() *BloggerPlugin {
	return &BloggerPlugin{}
}

func (p *BloggerPlugin) Name() string {
	return "blogger"
}

func (p *BloggerPlugin) CanHandle(rawURL string) bool {
	return strings.Contains(hostOf(rawURL), ".blogspot.")
}

func (p *BloggerPlugin) Priority() int {
	return 50
}

func (p *BloggerPlugin) Resolve(_ context.Context, rawURL string, _ *http.Client) (*plugins.SourceInfo, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	site := u.Scheme + "://" + u.Host
	blog := u.Hostname()
	if i := strings.Index(blog, ".blogspot."); i > 0 {
		blog = blog[:i]
	}

	return &plugins.SourceInfo{
		OriginalURL: rawURL,
		FeedURL:     site + "/feeds/posts/default",
		SiteURL:     site + "/",
		Title:       blog,
		Metadata: map[string]string{
			"plugin": "blogger",
			"blog":   blog,
		},
	}, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
