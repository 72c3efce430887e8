package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/przepisy/internal/config"
	"github.com/pders01/przepisy/internal/explore"
)

type keyMap struct {
	Quit      key.Binding
	Search    key.Binding
	Open      key.Binding
	LoadMore  key.Binding
	Retry     key.Binding
	Sort      key.Binding
	PageSize  key.Binding
	OpenMedia key.Binding
	Back      key.Binding
	Help      key.Binding
}

// newKeyMap builds bindings from config. Action keys carry the modifier so
// they never collide with list navigation.
func newKeyMap(cfg config.KeyConfig) keyMap {
	mod := func(k string) string {
		if cfg.Modifier == "" {
			return k
		}
		return cfg.Modifier + "+" + k
	}
	b := cfg.Bindings
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys(b.Quit, "ctrl+c"),
			key.WithHelp(b.Quit, "wyjdź"),
		),
		Search: key.NewBinding(
			key.WithKeys(b.Search),
			key.WithHelp(b.Search, "szukaj"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "otwórz"),
		),
		LoadMore: key.NewBinding(
			key.WithKeys(mod(b.LoadMore)),
			key.WithHelp(mod(b.LoadMore), "więcej"),
		),
		Retry: key.NewBinding(
			key.WithKeys(mod(b.Retry)),
			key.WithHelp(mod(b.Retry), "ponów"),
		),
		Sort: key.NewBinding(
			key.WithKeys(mod(b.Sort)),
			key.WithHelp(mod(b.Sort), "sortowanie"),
		),
		PageSize: key.NewBinding(
			key.WithKeys(mod(b.PageSize)),
			key.WithHelp(mod(b.PageSize), "rozmiar strony"),
		),
		OpenMedia: key.NewBinding(
			key.WithKeys(mod(b.OpenMedia)),
			key.WithHelp(mod(b.OpenMedia), "zdjęcie/źródło"),
		),
		Back: key.NewBinding(
			key.WithKeys(b.Back),
			key.WithHelp(b.Back, "wstecz"),
		),
		Help: key.NewBinding(
			key.WithKeys(b.Help),
			key.WithHelp(b.Help, "pomoc"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Open, k.LoadMore, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Search, k.Open, k.Back},
		{k.LoadMore, k.Retry, k.Sort, k.PageSize},
		{k.OpenMedia, k.Help, k.Quit},
	}
}

type KeyHandler struct {
	app  *App
	keys keyMap
}

func NewKeyHandler(app *App, cfg *config.Config) *KeyHandler {
	return &KeyHandler{app: app, keys: newKeyMap(cfg.Keys)}
}

func (kh *KeyHandler) HandleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return kh.app, tea.Quit
	}
	if kh.app.view == ViewExplore && kh.app.searchInput.Focused() {
		return kh.handleSearchInput(msg)
	}
	switch kh.app.view {
	case ViewRecipe:
		return kh.handleRecipeKeys(msg)
	default:
		return kh.handleExploreKeys(msg)
	}
}

// handleSearchInput edits the term. Every change restarts the debounce;
// enter submits at once.
func (kh *KeyHandler) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	switch msg.Type {
	case tea.KeyEsc:
		a.searchInput.Blur()
		return a, nil
	case tea.KeyEnter:
		a.searchSeq++
		a.searchInput.Blur()
		return a, a.fetch(a.ctrl.Submit(a.searchInput.Value()))
	case tea.KeyTab, tea.KeyDown:
		a.searchInput.Blur()
		return a, nil
	}

	prev := a.searchInput.Value()
	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	if a.searchInput.Value() == prev {
		return a, cmd
	}

	a.searchSeq++
	seq := a.searchSeq
	wait := a.config.Explore.SearchDebounce
	return a, tea.Batch(cmd, tea.Tick(wait, func(time.Time) tea.Msg {
		return searchDebounceFireMsg{seq: seq}
	}))
}

func (kh *KeyHandler) handleExploreKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	k := kh.keys

	switch {
	case key.Matches(msg, k.Quit):
		return a, tea.Quit
	case key.Matches(msg, k.Search):
		a.searchInput.Focus()
		a.searchInput.CursorEnd()
		return a, nil
	case key.Matches(msg, k.Help):
		a.help.ShowAll = !a.help.ShowAll
		return a, nil
	case key.Matches(msg, k.LoadMore):
		return a, a.fetch(a.ctrl.LoadMore())
	case key.Matches(msg, k.Retry):
		return a, a.fetch(a.ctrl.Retry())
	case key.Matches(msg, k.Sort):
		return a, a.fetch(a.ctrl.SetSort(explore.NextSort(a.ctrl.Query().Sort)))
	case key.Matches(msg, k.PageSize):
		return a, a.fetch(a.ctrl.SetPageSize(explore.NextPageSize(a.ctrl.Query().PageSize)))
	case key.Matches(msg, k.Open):
		if card, ok := a.selectedCard(); ok {
			a.view = ViewRecipe
			a.current = &card
			a.recipeLoading = true
			a.viewport.SetContent(MsgLoadingRecipe)
			return a, a.loadRecipe(card.ID)
		}
		return a, nil
	case key.Matches(msg, k.OpenMedia):
		if card, ok := a.selectedCard(); ok && card.ImagePath != "" {
			return a, a.openURL(card.ImagePath)
		}
		a.flash = MsgNothingToOpen
		return a, nil
	}

	return kh.delegateToList(msg)
}

// delegateToList lets the list handle navigation and requests the next page
// once the cursor reaches the last loaded card. After a failure only the
// retry key fetches again.
func (kh *KeyHandler) delegateToList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	var cmd tea.Cmd
	a.list, cmd = a.list.Update(msg)

	n := len(a.list.Items())
	if n > 0 && a.list.Index() == n-1 && a.ctrl.State().Phase() != explore.PhaseError {
		if req := a.ctrl.LoadMore(); req != nil {
			return a, tea.Batch(cmd, a.fetch(req))
		}
	}
	return a, cmd
}

func (kh *KeyHandler) handleRecipeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app
	k := kh.keys

	switch {
	case key.Matches(msg, k.Back):
		a.view = ViewExplore
		a.current = nil
		a.recipe = nil
		return a, nil
	case key.Matches(msg, k.Quit):
		return a, tea.Quit
	case key.Matches(msg, k.OpenMedia):
		if target := a.mediaTarget(); target != "" {
			return a, a.openURL(target)
		}
		a.flash = MsgNothingToOpen
		return a, nil
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}
