package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pders01/przepisy/internal/debuglog"
	"github.com/pders01/przepisy/internal/storage"
)

const cacheSize = 256

type cacheKey struct {
	query string
	limit int
}

type bleveEngine struct {
	store *storage.Store
	idx   bleve.Index
	cache *lru.Cache[cacheKey, []*Result]
}

// field boosts: exact match, prefix match
var boostedFields = []struct {
	name   string
	match  float64
	prefix float64
}{
	{"name", 4.0, 3.5},
	{"category", 2.5, 2.0},
	{"ingredients", 2.0, 1.8},
	{"description", 1.0, 0.8},
}

// NewBleveEngine creates or opens a Bleve index at indexPath and indexes current data.
func NewBleveEngine(store *storage.Store, indexPath string) (Searcher, error) {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	idx, err := bleve.Open(indexPath)
	if err != nil {
		idx, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating index: %w", err)
		}
	}

	cache, err := lru.New[cacheKey, []*Result](cacheSize)
	if err != nil {
		idx.Close()
		return nil, err
	}

	be := &bleveEngine{store: store, idx: idx, cache: cache}
	if err := be.reindexAll(); err != nil {
		idx.Close()
		return nil, fmt.Errorf("indexing recipes: %w", err)
	}
	return be, nil
}

// NewSearcher returns the bleve engine, or the scanning Engine when the
// index cannot be opened.
func NewSearcher(store *storage.Store, indexPath string) Searcher {
	if indexPath != "" {
		be, err := NewBleveEngine(store, indexPath)
		if err == nil {
			return be
		}
		debuglog.Warnf("search index unavailable, falling back to scan: %v", err)
	}
	return NewEngine(store)
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	name := bleve.NewTextFieldMapping()
	name.Analyzer = standard.Name
	name.Store = true
	name.IncludeTermVectors = true

	text := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = false
		return fm
	}

	sourceID := bleve.NewKeywordFieldMapping()

	dm.AddFieldMappingsAt("name", name)
	dm.AddFieldMappingsAt("category", text())
	dm.AddFieldMappingsAt("ingredients", text())
	dm.AddFieldMappingsAt("description", text())
	dm.AddFieldMappingsAt("source_id", sourceID)

	im.DefaultMapping = dm
	return im
}

func recipeDoc(r *storage.Recipe) map[string]any {
	return map[string]any{
		"name":        r.Name,
		"category":    r.CategoryName,
		"ingredients": strings.Join(r.Ingredients, ", "),
		"description": r.Description,
		"source_id":   r.SourceID,
	}
}

func (b *bleveEngine) reindexAll() error {
	recipes, err := b.store.GetAllRecipes()
	if err != nil {
		return err
	}

	batch := b.idx.NewBatch()
	for _, r := range recipes {
		if err := batch.Index(r.ID, recipeDoc(r)); err != nil {
			return err
		}
	}
	return b.idx.Batch(batch)
}

func (b *bleveEngine) Search(query string, limit int) ([]*Result, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []*Result{}, nil
	}

	key := cacheKey{query: strings.ToLower(query), limit: limit}
	if cached, ok := b.cache.Get(key); ok {
		return cached, nil
	}

	var qs []bleveQuery.Query
	for _, tok := range tokenize(query) {
		for _, f := range boostedFields {
			mq := bleve.NewMatchQuery(tok)
			mq.SetField(f.name)
			mq.SetBoost(f.match)
			qs = append(qs, mq)

			pq := bleve.NewPrefixQuery(tok)
			pq.SetField(f.name)
			pq.SetBoost(f.prefix)
			qs = append(qs, pq)
		}
	}
	if len(qs) == 0 {
		return []*Result{}, nil
	}

	size := limit
	if size <= 0 {
		size = 1000
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), size, 0, false)
	res, err := b.idx.Search(req)
	if err != nil {
		return nil, err
	}

	out := make([]*Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		recipe, err := b.store.GetRecipe(h.ID)
		if err != nil {
			// index lags the store; skip deleted recipes
			continue
		}
		out = append(out, &Result{Recipe: recipe, Score: h.Score})
	}

	b.cache.Add(key, out)
	return out, nil
}

// OnDataUpdated indexes the provided recipes.
func (b *bleveEngine) OnDataUpdated(_ *storage.Source, recipes []*storage.Recipe) {
	batch := b.idx.NewBatch()
	for _, r := range recipes {
		_ = batch.Index(r.ID, recipeDoc(r))
	}
	if err := b.idx.Batch(batch); err != nil {
		debuglog.Errorf("indexing %d recipes: %v", len(recipes), err)
	}
	b.purge()
}

// OnRecipesDeleted drops the recipes from the index.
func (b *bleveEngine) OnRecipesDeleted(ids []string) {
	batch := b.idx.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.idx.Batch(batch); err != nil {
		debuglog.Errorf("removing %d recipes from index: %v", len(ids), err)
	}
	b.purge()
}

func (b *bleveEngine) purge() {
	b.cache.Purge()
}

// DocCount reports total documents in the index.
func (b *bleveEngine) DocCount() (int, error) {
	n, err := b.idx.DocCount()
	return int(n), err
}

func (b *bleveEngine) Close() error {
	return b.idx.Close()
}
