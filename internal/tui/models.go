package tui

import (
	"github.com/charmbracelet/bubbles/list"

	"github.com/pders01/przepisy/internal/explore"
	"github.com/pders01/przepisy/internal/storage"
)

type View int

const (
	ViewExplore View = iota
	ViewRecipe
)

type pageLoadedMsg struct {
	done explore.Completion
}

type viewerResolvedMsg struct {
	res explore.ViewerResolution
}

// searchDebounceFireMsg fires after the debounce delay; only the latest seq
// submits.
type searchDebounceFireMsg struct {
	seq uint64
}

type recipeLoadedMsg struct {
	id      string
	recipe  *storage.Recipe
	content string
	err     error
}

type openedMsg struct {
	target string
	err    error
}

var _ list.Item = cardItem{}

// cardItem adapts an explore.Card to the bubbles list.
type cardItem struct {
	card explore.Card
}

func (i cardItem) Title() string {
	if i.card.IsOwnRecipe {
		return OwnMarkStyle.Render("★ ") + i.card.Name
	}
	return i.card.Name
}

func (i cardItem) Description() string {
	desc := i.card.CategoryName
	if desc == "" {
		desc = "bez kategorii"
	}
	if i.card.IsOwnRecipe {
		desc += " • Twój przepis"
	}
	return desc
}

func (i cardItem) FilterValue() string { return i.card.Name }
