package storage

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrInvalidCursor is returned for cursors that cannot be decoded or were
// issued for a different order.
var ErrInvalidCursor = errors.New("invalid cursor")

const sortTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Cursor marks the last recipe of a page: its sort key and ID.
type Cursor struct {
	Order Order  `json:"o"`
	Key   string `json:"k"`
	ID    string `json:"id"`
}

func sortKey(r *Recipe, order Order) string {
	if order.byName() {
		return strings.ToLower(strings.TrimSpace(r.Name))
	}
	return r.CreatedAt.UTC().Format(sortTimeLayout)
}

// CursorAfter returns the cursor that continues a listing after r.
func CursorAfter(r *Recipe, order Order) *Cursor {
	return &Cursor{Order: order, Key: sortKey(r, order), ID: r.ID}
}

// Encode returns the opaque, URL-safe form of c.
func (c *Cursor) Encode() string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses an opaque cursor and checks it belongs to order.
func DecodeCursor(s string, order Order) (*Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, ErrInvalidCursor
	}
	if c.Order != order || c.ID == "" {
		return nil, ErrInvalidCursor
	}
	if !order.byName() {
		if _, err := time.Parse(sortTimeLayout, c.Key); err != nil {
			return nil, ErrInvalidCursor
		}
	}
	return &c, nil
}

// precedes reports whether position (ka, ida) comes before (kb, idb) in order.
func precedes(ka, ida, kb, idb string, order Order) bool {
	if ka != kb {
		if order.descending() {
			return ka > kb
		}
		return ka < kb
	}
	if order.descending() {
		return ida > idb
	}
	return ida < idb
}
