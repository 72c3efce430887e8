// Package recipes defines the page-fetch contract used by the explorer and
// its local and remote implementations.
package recipes

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pders01/przepisy/internal/storage"
)

// SortKey is the wire form of a listing order.
type SortKey string

const (
	SortCreatedDesc SortKey = "created_at.desc"
	SortCreatedAsc  SortKey = "created_at.asc"
	SortNameAsc     SortKey = "name.asc"
	SortNameDesc    SortKey = "name.desc"

	DefaultSort = SortCreatedDesc
)

// SortKeys lists the accepted sort keys in display order.
var SortKeys = []SortKey{SortCreatedDesc, SortCreatedAsc, SortNameAsc, SortNameDesc}

// ParseSortKey returns the sort key for s and whether it is whitelisted.
func ParseSortKey(s string) (SortKey, bool) {
	k := SortKey(strings.TrimSpace(s))
	return k, k.Valid()
}

func (k SortKey) Valid() bool {
	switch k {
	case SortCreatedDesc, SortCreatedAsc, SortNameAsc, SortNameDesc:
		return true
	}
	return false
}

// Order maps the key onto the storage order. Unknown keys use the default.
func (k SortKey) Order() storage.Order {
	switch k {
	case SortCreatedAsc:
		return storage.OrderCreatedAsc
	case SortNameAsc:
		return storage.OrderNameAsc
	case SortNameDesc:
		return storage.OrderNameDesc
	default:
		return storage.OrderCreatedDesc
	}
}

// Label is the short Polish name shown in the UI.
func (k SortKey) Label() string {
	switch k {
	case SortCreatedAsc:
		return "najstarsze"
	case SortNameAsc:
		return "nazwa A-Z"
	case SortNameDesc:
		return "nazwa Z-A"
	default:
		return "najnowsze"
	}
}

const (
	DefaultLimit = 12
	MaxLimit     = 100
	// MinQueryLength is the shortest search term, in runes, sent as q.
	MinQueryLength = 2
)

var (
	ErrNotFound      = storage.ErrNotFound
	ErrInvalidCursor = storage.ErrInvalidCursor
)

// Summary is the read-only listing shape of a recipe.
type Summary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug,omitempty"`
	ImagePath    string `json:"imagePath,omitempty"`
	CategoryName string `json:"categoryName,omitempty"`
	AuthorID     string `json:"authorId"`
}

// Summarize projects a stored recipe onto its listing shape.
func Summarize(r *storage.Recipe) Summary {
	return Summary{
		ID:           r.ID,
		Name:         r.Name,
		Slug:         r.Slug,
		ImagePath:    r.ImagePath,
		CategoryName: r.CategoryName,
		AuthorID:     r.AuthorID,
	}
}

type PageInfo struct {
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type Page struct {
	Items    []Summary `json:"items"`
	PageInfo PageInfo  `json:"pageInfo"`
}

// PageRequest selects one page. Cursor wins over Page when both are set.
type PageRequest struct {
	Query  string
	Sort   SortKey
	Limit  int
	Cursor string
	Page   int
}

// Values encodes the request as query parameters. q is sent only when it
// is long enough to filter by.
func (r PageRequest) Values() url.Values {
	v := url.Values{}
	if q := strings.TrimSpace(r.Query); utf8.RuneCountInString(q) >= MinQueryLength {
		v.Set("q", q)
	}
	sort := r.Sort
	if !sort.Valid() {
		sort = DefaultSort
	}
	v.Set("sort", string(sort))
	if r.Limit > 0 {
		v.Set("limit", strconv.Itoa(r.Limit))
	}
	switch {
	case r.Cursor != "":
		v.Set("cursor", r.Cursor)
	case r.Page > 1:
		v.Set("page", strconv.Itoa(r.Page))
	}
	return v
}

// Fetcher loads one page of recipe summaries.
type Fetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
}

// Reader is a Fetcher that can also load a full recipe.
type Reader interface {
	Fetcher
	Recipe(ctx context.Context, id string) (*storage.Recipe, error)
}

// IsNotFound reports whether err means the recipe does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
