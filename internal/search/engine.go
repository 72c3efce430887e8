package search

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pders01/przepisy/internal/storage"
)

// MinQueryLength is the shortest query, in runes, that is searched at all.
const MinQueryLength = 2

// Engine scans the store directly. It is used when no bleve index is
// available and in tests.
type Engine struct {
	store *storage.Store
}

// NewEngine creates a new search engine
func NewEngine(store *storage.Store) *Engine {
	return &Engine{store: store}
}

// Search scores every recipe against the query terms and returns the best
// limit matches, highest score first.
func (e *Engine) Search(query string, limit int) ([]*Result, error) {
	if utf8.RuneCountInString(strings.TrimSpace(query)) < MinQueryLength {
		return []*Result{}, nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return []*Result{}, nil
	}

	all, err := e.store.GetAllRecipes()
	if err != nil {
		return nil, err
	}

	results := []*Result{}
	for _, recipe := range all {
		if result := scoreRecipe(recipe, terms); result != nil {
			results = append(results, result)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func scoreRecipe(recipe *storage.Recipe, terms []string) *Result {
	fields := []struct {
		name   string
		text   string
		weight float64
	}{
		{"name", recipe.Name, 4.0},
		{"category", recipe.CategoryName, 2.5},
		{"ingredients", strings.Join(recipe.Ingredients, ", "), 2.0},
		{"description", recipe.Description, 1.0},
	}

	var matches []Match
	var total float64
	for _, f := range fields {
		score := scoreField(f.text, terms, f.weight)
		if score <= 0 {
			continue
		}
		text := f.text
		if f.name == "description" {
			text = findBestSnippet(f.text, terms, 150)
		}
		matches = append(matches, Match{Field: f.name, Text: text, Weight: score})
		total += score
	}

	if total == 0 {
		return nil
	}
	return &Result{Recipe: recipe, Score: total, Matches: matches}
}

// scoreField calculates relevance score for a field
func scoreField(text string, terms []string, weight float64) float64 {
	if text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	words := tokenize(text)
	if len(words) == 0 {
		return 0
	}

	var score float64
	matchedTerms := 0

	for _, term := range terms {
		if strings.Contains(lower, term) {
			score += 2.0
			matchedTerms++
		}

		for _, word := range words {
			switch {
			case word == term:
				score += 1.5
				matchedTerms++
			case strings.HasPrefix(word, term) || strings.HasSuffix(word, term):
				score += 1.0
				matchedTerms++
			case strings.Contains(word, term):
				score += 0.5
				matchedTerms++
			}
		}
	}

	if len(terms) > 1 && matchedTerms > 1 {
		score *= 1.0 + float64(matchedTerms)/float64(len(terms))
	}

	tf := float64(matchedTerms) / float64(len(words))
	score *= 1.0 + math.Log(1.0+tf)

	return score * weight
}

// findBestSnippet picks the window of words with the most term hits.
func findBestSnippet(text string, terms []string, maxLength int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	windowSize := maxLength / 8
	if windowSize >= len(words) {
		return truncate(text, maxLength)
	}

	bestScore, bestStart := 0, 0
	for i := 0; i <= len(words)-windowSize; i++ {
		window := strings.ToLower(strings.Join(words[i:i+windowSize], " "))
		score := 0
		for _, term := range terms {
			if strings.Contains(window, term) {
				score++
			}
		}
		if score > bestScore {
			bestScore, bestStart = score, i
		}
	}

	return truncate(strings.Join(words[bestStart:bestStart+windowSize], " "), maxLength)
}

// tokenize splits text into lowercased terms of at least two runes.
func tokenize(text string) []string {
	var terms []string
	var current strings.Builder

	flush := func() {
		if term := current.String(); utf8.RuneCountInString(term) > 1 {
			terms = append(terms, term)
		}
		current.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
		} else if current.Len() > 0 {
			flush()
		}
	}
	flush()

	return terms
}

func truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxLen-1]) + "…"
}
