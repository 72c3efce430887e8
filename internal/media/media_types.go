package media

import (
	_ "embed"
	"fmt"
	"net/url"
	"path"
	"runtime"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed media_types.toml
var mediaTypesTOML []byte

// Kind is what a link points at, which decides the program opening it.
type Kind int

const (
	KindPage Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "page"
	}
}

type TypeConfig struct {
	Extensions  []string `toml:"extensions"`
	URLPatterns []string `toml:"url_patterns"`
}

type TypesConfig struct {
	Image     TypeConfig                `toml:"image"`
	Video     TypeConfig                `toml:"video"`
	Platforms map[string]PlatformConfig `toml:"platforms"`
}

type PlatformConfig struct {
	DefaultOpener string `toml:"default_opener"`
}

type TypeDetector struct {
	config *TypesConfig
}

func NewTypeDetector() (*TypeDetector, error) {
	var cfg TypesConfig
	if err := toml.Unmarshal(mediaTypesTOML, &cfg); err != nil {
		return nil, fmt.Errorf("parsing media_types.toml: %w", err)
	}
	return &TypeDetector{config: &cfg}, nil
}

// DetectKind classifies a link by its path extension, then by known host
// patterns.
func (d *TypeDetector) DetectKind(rawURL string) Kind {
	lower := strings.ToLower(rawURL)

	p := lower
	if u, err := url.Parse(lower); err == nil {
		p = u.Path
	}
	if ext := strings.TrimPrefix(path.Ext(p), "."); ext != "" {
		if slices.Contains(d.config.Image.Extensions, ext) {
			return KindImage
		}
		if slices.Contains(d.config.Video.Extensions, ext) {
			return KindVideo
		}
	}

	if matchesPattern(lower, d.config.Image.URLPatterns) {
		return KindImage
	}
	if matchesPattern(lower, d.config.Video.URLPatterns) {
		return KindVideo
	}
	return KindPage
}

func (d *TypeDetector) DefaultOpener() string {
	if pc, ok := d.config.Platforms[runtime.GOOS]; ok && pc.DefaultOpener != "" {
		return pc.DefaultOpener
	}
	if pc, ok := d.config.Platforms["fallback"]; ok && pc.DefaultOpener != "" {
		return pc.DefaultOpener
	}
	return "xdg-open"
}

func matchesPattern(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
