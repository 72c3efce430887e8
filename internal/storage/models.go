package storage

import (
	"time"
)

type Recipe struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug,omitempty"`
	Description  string    `json:"description"`
	ImagePath    string    `json:"image_path,omitempty"`
	CategoryName string    `json:"category_name,omitempty"`
	AuthorID     string    `json:"author_id"`
	SourceID     string    `json:"source_id,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	Ingredients  []string  `json:"ingredients,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Source is a recipe blog feed that recipes were imported from.
type Source struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	SiteURL      string    `json:"site_url,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	LastFetched  time.Time `json:"last_fetched"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Order is the listing order for ListRecipes.
type Order int

const (
	OrderCreatedDesc Order = iota
	OrderCreatedAsc
	OrderNameAsc
	OrderNameDesc
)

func (o Order) descending() bool {
	return o == OrderCreatedDesc || o == OrderNameDesc
}

func (o Order) byName() bool {
	return o == OrderNameAsc || o == OrderNameDesc
}

// ListOptions selects one page of recipes.
// IDs == nil lists everything; a non-nil empty set matches nothing.
// After takes precedence over Offset.
type ListOptions struct {
	IDs    map[string]struct{}
	Order  Order
	Limit  int
	After  *Cursor
	Offset int
}
