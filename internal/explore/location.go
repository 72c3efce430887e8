package explore

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/pders01/przepisy/internal/recipes"
)

// Address parameters owned by the explorer.
const (
	ParamQuery = "q"
	ParamLimit = "limit"
	ParamSize  = "size" // accepted alias of limit, never written
	ParamSort  = "sort"
	ParamPage  = "page" // offset paging only
)

// Location is the explorer part of an address.
type Location struct {
	Query QueryState
	// Page is the legacy page number, always >= 1 once parsed. Cursor
	// paging ignores it.
	Page int
}

// ParseLocation reads the explorer parameters, falling back to defaults for
// anything missing or not accepted.
func ParseLocation(v url.Values) Location {
	q := DefaultQuery()
	q.Term = strings.TrimSpace(v.Get(ParamQuery))

	rawLimit := v.Get(ParamLimit)
	if rawLimit == "" {
		rawLimit = v.Get(ParamSize)
	}
	if n, ok := positiveInt(rawLimit); ok && ValidPageSize(n) {
		q.PageSize = n
	}

	if k, ok := recipes.ParseSortKey(v.Get(ParamSort)); ok {
		q.Sort = k
	}

	page := 1
	if n, ok := positiveInt(v.Get(ParamPage)); ok {
		page = n
	}

	return Location{Query: q, Page: page}
}

// ParseAddress parses a raw address such as "/explore?q=zupa&sort=name.asc".
func ParseAddress(raw string) (*url.URL, Location, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, Location{}, fmt.Errorf("parsing address %q: %w", raw, err)
	}
	return u, ParseLocation(u.Query()), nil
}

func positiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// EncodeLocation writes q as address parameters, omitting every value that
// equals its default.
func EncodeLocation(q QueryState) url.Values {
	q = Normalize(q)
	v := url.Values{}
	if q.Term != "" {
		v.Set(ParamQuery, q.Term)
	}
	if q.Sort != recipes.DefaultSort {
		v.Set(ParamSort, string(q.Sort))
	}
	if q.PageSize != DefaultPageSize {
		v.Set(ParamLimit, strconv.Itoa(q.PageSize))
	}
	return v
}

// Values encodes the location; page is written only past the first page.
func (l Location) Values() url.Values {
	v := EncodeLocation(l.Query)
	if l.Page > 1 {
		v.Set(ParamPage, strconv.Itoa(l.Page))
	}
	return v
}

// Apply returns a copy of u carrying loc. Parameters the explorer does not
// own are kept as they are.
func Apply(u *url.URL, loc Location) *url.URL {
	out := *u
	v := u.Query()
	for _, k := range []string{ParamQuery, ParamLimit, ParamSize, ParamSort, ParamPage} {
		v.Del(k)
	}
	for k, vals := range loc.Values() {
		v[k] = vals
	}
	out.RawQuery = v.Encode()
	return &out
}

// Navigator is the address bar. Explorer updates always replace the current
// entry and never add history.
type Navigator interface {
	Location() *url.URL
	Replace(u *url.URL)
}

// Sync returns an observer that mirrors every Location into nav. Identical
// addresses are not written again.
func Sync(nav Navigator) func(Location) {
	return func(loc Location) {
		cur := nav.Location()
		next := Apply(cur, loc)
		if next.String() == cur.String() {
			return
		}
		nav.Replace(next)
	}
}

// MemoryNavigator is an in-process address bar.
type MemoryNavigator struct {
	mu       sync.RWMutex
	current  url.URL
	replaced int
}

func NewMemoryNavigator(raw string) (*MemoryNavigator, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing address %q: %w", raw, err)
	}
	return &MemoryNavigator{current: *u}, nil
}

func (n *MemoryNavigator) Location() *url.URL {
	n.mu.RLock()
	defer n.mu.RUnlock()
	u := n.current
	return &u
}

func (n *MemoryNavigator) Replace(u *url.URL) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = *u
	n.replaced++
}

// Replacements counts the Replace calls so far.
func (n *MemoryNavigator) Replacements() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.replaced
}

func (n *MemoryNavigator) String() string {
	return n.Location().String()
}
