package search

import "github.com/pders01/przepisy/internal/storage"

// Result is one matching recipe with its relevance score.
type Result struct {
	Recipe  *storage.Recipe
	Score   float64
	Matches []Match
}

// Match records which field matched and a snippet of it.
type Match struct {
	Field  string // "name", "category", "ingredients", "description"
	Text   string
	Weight float64
}

// Searcher defines the minimal search API used by the recipe service.
type Searcher interface {
	Search(query string, limit int) ([]*Result, error)
}

// UpdateListener can be implemented by search engines that maintain
// an external index and want to be notified about data changes.
type UpdateListener interface {
	OnDataUpdated(source *storage.Source, recipes []*storage.Recipe)
}

// DeleteListener is notified when recipes are removed, for example when
// their source is deleted.
type DeleteListener interface {
	OnRecipesDeleted(ids []string)
}

// DebugStatser provides lightweight stats for visibility/debugging.
type DebugStatser interface {
	DocCount() (int, error)
}
