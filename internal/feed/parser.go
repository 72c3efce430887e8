package feed

import (
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/pders01/przepisy/internal/storage"
)

const maxDescriptionRunes = 280

// recipeNamespace seeds the name-based recipe IDs so re-importing a post
// yields the same ID.
var recipeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/pders01/przepisy/recipes"))

// ParsedFeed is a blog feed converted to recipes.
type ParsedFeed struct {
	Title       string
	Description string
	SiteURL     string
	Recipes     []*storage.Recipe
}

type Parser struct {
	parser   *gofeed.Parser
	authorID string
}

// NewParser returns a parser stamping authorID on every recipe.
func NewParser(authorID string) *Parser {
	return &Parser{
		parser:   gofeed.NewParser(),
		authorID: authorID,
	}
}

func (p *Parser) Parse(reader io.Reader, sourceID string) (*ParsedFeed, error) {
	feed, err := p.parser.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	out := &ParsedFeed{
		Title:       strings.TrimSpace(feed.Title),
		Description: plainText(feed.Description),
		SiteURL:     feed.Link,
		Recipes:     make([]*storage.Recipe, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		name := strings.TrimSpace(item.Title)
		if name == "" {
			continue
		}

		body := getContent(item)
		recipe := &storage.Recipe{
			ID:           recipeID(sourceID, item),
			Name:         name,
			Description:  truncateRunes(plainText(item.Description), maxDescriptionRunes),
			ImagePath:    findImage(item),
			CategoryName: firstCategory(item),
			AuthorID:     p.authorID,
			SourceID:     sourceID,
			SourceURL:    item.Link,
			Ingredients:  findIngredients(body),
			Instructions: toMarkdown(body),
		}

		if item.PublishedParsed != nil {
			recipe.CreatedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			recipe.CreatedAt = *item.UpdatedParsed
		}

		out.Recipes = append(out.Recipes, recipe)
	}

	return out, nil
}

func getContent(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

func recipeID(sourceID string, item *gofeed.Item) string {
	key := item.GUID
	if key == "" {
		key = item.Link
	}
	if key == "" {
		key = item.Title
	}
	return uuid.NewSHA1(recipeNamespace, []byte(sourceID+"\x00"+key)).String()
}

func firstCategory(item *gofeed.Item) string {
	for _, c := range item.Categories {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

// findImage prefers an image enclosure, then the item image, then the first
// <img> in the post.
func findImage(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure.URL != "" && isImage(enclosure.Type, enclosure.URL) {
			return enclosure.URL
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	doc, err := html.Parse(strings.NewReader(item.Content + " " + item.Description))
	if err != nil {
		return ""
	}
	var src string
	walk(doc, func(n *html.Node) bool {
		if src == "" && n.Type == html.ElementNode && n.Data == "img" {
			src = attr(n, "src")
		}
		return src == ""
	})
	return src
}

func isImage(mimeType, rawURL string) bool {
	if strings.HasPrefix(mimeType, "image/") {
		return true
	}
	if mimeType != "" {
		return false
	}
	byExt := mime.TypeByExtension(strings.ToLower(path.Ext(rawURL)))
	return strings.HasPrefix(byExt, "image/")
}

// findIngredients collects the text of every list item in the post.
func findIngredients(content string) []string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var out []string
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "li" {
			if text := collapse(textOf(n)); text != "" {
				out = append(out, text)
			}
			return false
		}
		return true
	})
	return out
}

// toMarkdown renders post HTML as plain markdown: paragraphs, headings and
// bullet lists. Everything else is reduced to text.
func toMarkdown(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return plainText(content)
	}

	var blocks []string
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.Data {
		case "h1", "h2", "h3", "h4":
			if text := collapse(textOf(n)); text != "" {
				blocks = append(blocks, "## "+text)
			}
			return false
		case "p", "blockquote":
			if text := collapse(textOf(n)); text != "" {
				blocks = append(blocks, text)
			}
			return false
		case "ul", "ol":
			var items []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.Data == "li" {
					if text := collapse(textOf(c)); text != "" {
						items = append(items, "- "+text)
					}
				}
			}
			if len(items) > 0 {
				blocks = append(blocks, strings.Join(items, "\n"))
			}
			return false
		}
		return true
	})

	if len(blocks) == 0 {
		return plainText(content)
	}
	return strings.Join(blocks, "\n\n")
}

func plainText(s string) string {
	if !strings.Contains(s, "<") {
		return collapse(html.UnescapeString(s))
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}
	return collapse(textOf(doc))
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
		case c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style"):
			return false
		case c.Type == html.ElementNode && blockElements[c.Data]:
			b.WriteByte(' ')
		}
		return true
	})
	return b.String()
}

var blockElements = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "td": true,
	"h1": true, "h2": true, "h3": true, "h4": true,
}

// walk visits n depth-first; returning false skips a node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
