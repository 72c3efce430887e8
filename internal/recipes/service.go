package recipes

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pders01/przepisy/internal/search"
	"github.com/pders01/przepisy/internal/storage"
)

// maxSearchHits caps how many matches a query can narrow the listing to.
const maxSearchHits = 1000

// Service serves pages from the local store, narrowed by the search index
// when a query is given.
type Service struct {
	store    *storage.Store
	searcher search.Searcher
}

func NewService(store *storage.Store, searcher search.Searcher) *Service {
	if searcher == nil {
		searcher = search.NewEngine(store)
	}
	return &Service{store: store, searcher: searcher}
}

func (s *Service) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort := req.Sort
	if !sort.Valid() {
		sort = DefaultSort
	}
	opts := storage.ListOptions{Order: sort.Order(), Limit: clampLimit(req.Limit)}

	if q := strings.TrimSpace(req.Query); utf8.RuneCountInString(q) >= MinQueryLength {
		results, err := s.searcher.Search(q, maxSearchHits)
		if err != nil {
			return nil, fmt.Errorf("searching %q: %w", q, err)
		}
		opts.IDs = make(map[string]struct{}, len(results))
		for _, r := range results {
			opts.IDs[r.Recipe.ID] = struct{}{}
		}
	}

	switch {
	case req.Cursor != "":
		after, err := storage.DecodeCursor(req.Cursor, opts.Order)
		if err != nil {
			return nil, err
		}
		opts.After = after
	case req.Page > 1:
		opts.Offset = (req.Page - 1) * opts.Limit
	}

	list, more, err := s.store.ListRecipes(opts)
	if err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page := &Page{Items: make([]Summary, 0, len(list))}
	for _, r := range list {
		page.Items = append(page.Items, Summarize(r))
	}
	if more && len(list) > 0 {
		page.PageInfo = PageInfo{
			HasMore:    true,
			NextCursor: storage.CursorAfter(list[len(list)-1], opts.Order).Encode(),
		}
	}
	return page, nil
}

func (s *Service) Recipe(ctx context.Context, id string) (*storage.Recipe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.GetRecipe(id)
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}
