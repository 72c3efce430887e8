package plugins

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPlugin struct {
	name      string
	priority  int
	canHandle func(string) bool
	resolve   func(context.Context, string, *http.Client) (*SourceInfo, error)
}

func (p *mockPlugin) Name() string { return p.name }

func (p *mockPlugin) CanHandle(url string) bool {
	return p.canHandle != nil && p.canHandle(url)
}

func (p *mockPlugin) Resolve(ctx context.Context, url string, client *http.Client) (*SourceInfo, error) {
	if p.resolve != nil {
		return p.resolve(ctx, url, client)
	}
	return &SourceInfo{OriginalURL: url, FeedURL: url + "/feed", Title: p.name}, nil
}

func (p *mockPlugin) Priority() int { return p.priority }

func prefix(p string) func(string) bool {
	return func(url string) bool { return strings.HasPrefix(url, p) }
}

func TestRegistry_FindPlugin(t *testing.T) {
	registry := NewRegistry(5 * time.Second)
	low := &mockPlugin{name: "low", priority: 10, canHandle: prefix("https://")}
	high := &mockPlugin{name: "high", priority: 90, canHandle: prefix("https://blog.")}
	registry.Register(low)
	registry.Register(high)

	tests := []struct {
		url  string
		want Plugin
	}{
		{"https://blog.example.com", high},
		{"https://example.com", low},
		{"http://example.com", nil},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, registry.FindPlugin(tt.url))
		})
	}
}

func TestRegistry_FindPluginTieKeepsFirst(t *testing.T) {
	registry := NewRegistry(time.Second)
	first := &mockPlugin{name: "first", priority: 50, canHandle: prefix("")}
	second := &mockPlugin{name: "second", priority: 50, canHandle: prefix("")}
	registry.Register(first)
	registry.Register(second)

	assert.Equal(t, first, registry.FindPlugin("https://x.pl"))
}

func TestRegistry_Resolve(t *testing.T) {
	registry := NewRegistry(5 * time.Second)
	registry.Register(&mockPlugin{name: "blog", priority: 50, canHandle: prefix("https://blog.")})

	info, err := registry.Resolve(context.Background(), "https://blog.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://blog.example.com/feed", info.FeedURL)
	assert.Equal(t, "blog", info.Title)

	info, err = registry.Resolve(context.Background(), "https://example.com/rss.xml")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/rss.xml", info.FeedURL)
	assert.NotNil(t, info.Metadata)
}

func TestRegistry_ResolvePassesClientAndErrors(t *testing.T) {
	registry := NewRegistry(5 * time.Second)
	boom := errors.New("boom")
	registry.Register(&mockPlugin{
		name:      "failing",
		priority:  1,
		canHandle: prefix(""),
		resolve: func(_ context.Context, _ string, client *http.Client) (*SourceInfo, error) {
			assert.Equal(t, 5*time.Second, client.Timeout)
			return nil, boom
		},
	})

	_, err := registry.Resolve(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_ListPlugins(t *testing.T) {
	registry := NewRegistry(time.Second)
	registry.Register(&mockPlugin{name: "a", priority: 1})
	registry.Register(&mockPlugin{name: "b", priority: 100})

	list := registry.ListPlugins()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Name())

	list[0] = nil
	assert.NotNil(t, registry.ListPlugins()[0])
}
