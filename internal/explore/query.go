// Package explore holds the recipe explorer's search/listing state: the
// query the user asked for, the results on screen, and the controller that
// keeps the two and the address in step.
package explore

import (
	"strings"
	"unicode/utf8"

	"github.com/pders01/przepisy/internal/recipes"
)

// PageSizes are the accepted page sizes, smallest first.
var PageSizes = []int{12, 24, 48}

const DefaultPageSize = 12

// QueryState is what the user asked to see. Values are only ever built
// through Normalize, so Term is trimmed and PageSize and Sort are always
// accepted values.
type QueryState struct {
	Term     string
	PageSize int
	Sort     recipes.SortKey
}

func DefaultQuery() QueryState {
	return QueryState{PageSize: DefaultPageSize, Sort: recipes.DefaultSort}
}

// Normalize trims the term and replaces unknown page sizes and sort keys
// with their defaults.
func Normalize(q QueryState) QueryState {
	q.Term = strings.TrimSpace(q.Term)
	if !ValidPageSize(q.PageSize) {
		q.PageSize = DefaultPageSize
	}
	if !q.Sort.Valid() {
		q.Sort = recipes.DefaultSort
	}
	return q
}

func ValidPageSize(n int) bool {
	for _, s := range PageSizes {
		if s == n {
			return true
		}
	}
	return false
}

// NextPageSize cycles through PageSizes.
func NextPageSize(n int) int {
	for i, s := range PageSizes {
		if s == n {
			return PageSizes[(i+1)%len(PageSizes)]
		}
	}
	return DefaultPageSize
}

// NextSort cycles through recipes.SortKeys.
func NextSort(k recipes.SortKey) recipes.SortKey {
	for i, s := range recipes.SortKeys {
		if s == k {
			return recipes.SortKeys[(i+1)%len(recipes.SortKeys)]
		}
	}
	return recipes.DefaultSort
}

// pageRequest builds the first-page request for q. An empty term leaves
// Query unset so the fetcher takes its unfiltered path.
func (q QueryState) pageRequest() recipes.PageRequest {
	req := recipes.PageRequest{Sort: q.Sort, Limit: q.PageSize}
	if utf8.RuneCountInString(q.Term) >= MinTermLength {
		req.Query = q.Term
	}
	return req
}
