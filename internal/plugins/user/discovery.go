package user

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/pders01/przepisy/internal/plugins"
)

const maxDiscoveryBody = 2 << 20

// DiscoveryPlugin is the fallback for self-hosted blogs. It fetches the page
// and follows its <link rel="alternate"> feed advertisement. Addresses that
// already serve a feed are returned unchanged.
type DiscoveryPlugin struct{}

func NewDiscoveryPlugin() *DiscoveryPlugin {
	return &DiscoveryPlugin{}
}

func (p *DiscoveryPlugin) Name() string {
	return "discovery"
}

func (p *DiscoveryPlugin) CanHandle(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}

func (p *DiscoveryPlugin) Priority() int {
	return 0
}

func (p *DiscoveryPlugin) Resolve(ctx context.Context, rawURL string, client *http.Client) (*plugins.SourceInfo, error) {
	info := &plugins.SourceInfo{
		OriginalURL: rawURL,
		FeedURL:     rawURL,
		Metadata:    map[string]string{"plugin": "discovery"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/html, application/rss+xml, application/atom+xml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		return info, nil
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxDiscoveryBody))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	href, title := findFeedLink(doc)
	if href == "" {
		return nil, fmt.Errorf("no feed advertised at %s", rawURL)
	}

	base, _ := url.Parse(rawURL)
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("invalid feed link %q: %w", href, err)
	}

	info.FeedURL = base.ResolveReference(ref).String()
	info.SiteURL = rawURL
	info.Title = title
	return info, nil
}

// findFeedLink returns the first advertised RSS or Atom href and the page
// title.
func findFeedLink(doc *html.Node) (href, title string) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "link":
				if href == "" && isFeedLink(n) {
					href = attr(n, "href")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return href, title
}

func isFeedLink(n *html.Node) bool {
	if !strings.EqualFold(attr(n, "rel"), "alternate") {
		return false
	}
	switch strings.ToLower(attr(n, "type")) {
	case "application/rss+xml", "application/atom+xml":
		return attr(n, "href") != ""
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
