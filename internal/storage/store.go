package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	recipesBucket = []byte("recipes")
	sourcesBucket = []byte("sources")
	metaBucket    = []byte("metadata")
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *bolt.DB
}

func NewStore(dbPath string) (*Store, error) {
	return NewStoreWithTimeout(dbPath, 1*time.Second)
}

// NewStoreWithTimeout opens the database, waiting up to timeout for the file lock.
func NewStoreWithTimeout(dbPath string, timeout time.Duration) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{recipesBucket, sourcesBucket, metaBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRecipes upserts recipes. An existing recipe keeps its CreatedAt when
// the incoming copy has none.
func (s *Store) SaveRecipes(recipes []*Recipe) error {
	now := time.Now().UTC()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recipesBucket)
		for _, recipe := range recipes {
			if recipe.ID == "" {
				return fmt.Errorf("recipe %q has no id", recipe.Name)
			}
			if recipe.CreatedAt.IsZero() {
				if prev := b.Get([]byte(recipe.ID)); prev != nil {
					var old Recipe
					if err := json.Unmarshal(prev, &old); err == nil {
						recipe.CreatedAt = old.CreatedAt
					}
				}
				if recipe.CreatedAt.IsZero() {
					recipe.CreatedAt = now
				}
			}
			if recipe.UpdatedAt.IsZero() {
				recipe.UpdatedAt = now
			}
			data, err := json.Marshal(recipe)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(recipe.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetRecipe(id string) (*Recipe, error) {
	var recipe Recipe
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(recipesBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("recipe %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &recipe)
	})
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// GetAllRecipes returns every recipe, newest first.
func (s *Store) GetAllRecipes() ([]*Recipe, error) {
	recipes, err := s.scanRecipes(nil)
	if err != nil {
		return nil, err
	}
	sortRecipes(recipes, OrderCreatedDesc)
	return recipes, nil
}

func (s *Store) scanRecipes(ids map[string]struct{}) ([]*Recipe, error) {
	var recipes []*Recipe
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(recipesBucket)
		if ids != nil {
			for id := range ids {
				data := b.Get([]byte(id))
				if data == nil {
					continue
				}
				var recipe Recipe
				if err := json.Unmarshal(data, &recipe); err != nil {
					continue
				}
				recipes = append(recipes, &recipe)
			}
			return nil
		}
		return b.ForEach(func(_ []byte, v []byte) error {
			var recipe Recipe
			if err := json.Unmarshal(v, &recipe); err != nil {
				return nil
			}
			recipes = append(recipes, &recipe)
			return nil
		})
	})
	return recipes, err
}

func sortRecipes(recipes []*Recipe, order Order) {
	sort.Slice(recipes, func(i, j int) bool {
		return precedes(sortKey(recipes[i], order), recipes[i].ID, sortKey(recipes[j], order), recipes[j].ID, order)
	})
}

// ListRecipes returns one page in the requested order and whether more
// recipes follow it.
func (s *Store) ListRecipes(opts ListOptions) ([]*Recipe, bool, error) {
	recipes, err := s.scanRecipes(opts.IDs)
	if err != nil {
		return nil, false, err
	}
	sortRecipes(recipes, opts.Order)

	start := 0
	switch {
	case opts.After != nil:
		start = sort.Search(len(recipes), func(i int) bool {
			r := recipes[i]
			return precedes(opts.After.Key, opts.After.ID, sortKey(r, opts.Order), r.ID, opts.Order)
		})
	case opts.Offset > 0:
		start = opts.Offset
	}
	if start >= len(recipes) {
		return []*Recipe{}, false, nil
	}
	recipes = recipes[start:]

	if opts.Limit > 0 && len(recipes) > opts.Limit {
		return recipes[:opts.Limit], true, nil
	}
	return recipes, false, nil
}

func (s *Store) DeleteRecipe(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recipesBucket)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("recipe %s: %w", id, ErrNotFound)
		}
		return b.Delete([]byte(id))
	})
}

func (s *Store) SaveSource(source *Source) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(source)
		if err != nil {
			return err
		}
		return tx.Bucket(sourcesBucket).Put([]byte(source.ID), data)
	})
}

func (s *Store) GetSource(id string) (*Source, error) {
	var source Source
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(sourcesBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("source %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &source)
	})
	if err != nil {
		return nil, err
	}
	return &source, nil
}

func (s *Store) GetAllSources() ([]*Source, error) {
	var sources []*Source
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(sourcesBucket).ForEach(func(_ []byte, v []byte) error {
			var source Source
			if err := json.Unmarshal(v, &source); err != nil {
				return err
			}
			sources = append(sources, &source)
			return nil
		})
	})
	// Title, case-insensitive, URL when untitled
	sort.Slice(sources, func(i, j int) bool {
		ti, tj := sources[i].Title, sources[j].Title
		if ti == "" {
			ti = sources[i].URL
		}
		if tj == "" {
			tj = sources[j].URL
		}
		return strings.ToLower(ti) < strings.ToLower(tj)
	})
	return sources, err
}

// DeleteSource removes a source and every recipe imported from it, returning
// the removed recipe IDs.
func (s *Store) DeleteSource(id string) ([]string, error) {
	var removed []string
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(sourcesBucket).Delete([]byte(id)); err != nil {
			return err
		}
		var err error
		removed, err = deleteSourceRecipes(tx, id, nil)
		return err
	})
	return removed, err
}

// PruneSource removes the recipes of a source whose IDs are not in keep and
// returns their IDs. The source itself stays.
func (s *Store) PruneSource(id string, keep map[string]struct{}) ([]string, error) {
	var removed []string
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		removed, err = deleteSourceRecipes(tx, id, keep)
		return err
	})
	return removed, err
}

func deleteSourceRecipes(tx *bolt.Tx, sourceID string, keep map[string]struct{}) ([]string, error) {
	var removed []string
	c := tx.Bucket(recipesBucket).Cursor()
	for k, v := c.First(); k != nil; {
		var recipe Recipe
		if err := json.Unmarshal(v, &recipe); err == nil && recipe.SourceID == sourceID {
			if _, kept := keep[recipe.ID]; !kept {
				removed = append(removed, recipe.ID)
				if err := c.Delete(); err != nil {
					return nil, err
				}
				// Delete moves the cursor to the next item
				k, v = c.Seek(k)
				continue
			}
		}
		k, v = c.Next()
	}
	return removed, nil
}

func (s *Store) SetMeta(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(key), []byte(value))
	})
}

func (s *Store) GetMeta(key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(metaBucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("meta %s: %w", key, ErrNotFound)
		}
		value = string(data)
		return nil
	})
	return value, err
}
