package explore

import (
	"regexp"
	"strings"

	"github.com/pders01/przepisy/internal/recipes"
)

// Card is the render-ready form of a recipe summary.
type Card struct {
	ID           string
	Name         string
	Slug         string
	ImagePath    string
	CategoryName string
	AuthorID     string
	IsOwnRecipe  bool
}

// ToCard maps a summary onto a card, deriving the slug from the name when
// none was supplied.
func ToCard(s recipes.Summary) Card {
	slug := s.Slug
	if slug == "" {
		slug = Slugify(s.Name)
	}
	return Card{
		ID:           s.ID,
		Name:         s.Name,
		Slug:         slug,
		ImagePath:    s.ImagePath,
		CategoryName: s.CategoryName,
		AuthorID:     s.AuthorID,
	}
}

func ToCards(items []recipes.Summary) []Card {
	cards := make([]Card, len(items))
	for i, s := range items {
		cards[i] = ToCard(s)
	}
	return cards
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugSeparate = regexp.MustCompile(`[\s_-]+`)
)

// Slugify lowercases and trims s, drops everything but ASCII word
// characters, whitespace and hyphens, and joins the remaining words with
// single hyphens. Slugify(Slugify(s)) == Slugify(s).
func Slugify(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSeparate.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
