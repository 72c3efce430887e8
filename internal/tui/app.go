package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/przepisy/internal/config"
	"github.com/pders01/przepisy/internal/debuglog"
	"github.com/pders01/przepisy/internal/explore"
	"github.com/pders01/przepisy/internal/media"
	"github.com/pders01/przepisy/internal/recipes"
	"github.com/pders01/przepisy/internal/storage"
)

// Deps are the collaborators of the explorer UI. Config and Reader are
// required; the rest are optional.
type Deps struct {
	Config    *config.Config
	Reader    recipes.Reader
	Identity  explore.IdentityProvider
	Launcher  *media.Launcher
	Navigator explore.Navigator
}

type App struct {
	config     *config.Config
	reader     recipes.Reader
	identity   explore.IdentityProvider
	launcher   *media.Launcher
	nav        explore.Navigator
	ctrl       *explore.Controller
	keyHandler *KeyHandler

	list        list.Model
	searchInput textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model
	help        help.Model

	view          View
	current       *explore.Card
	recipe        *storage.Recipe
	recipeLoading bool
	recipeErr     error
	flash         string
	searchSeq     uint64

	width           int
	height          int
	glamourRenderer *glamour.TermRenderer
	rendererWidth   int

	log *debuglog.FieldLogger
}

func NewApp(deps Deps) *App {
	cfg := deps.Config

	nav := deps.Navigator
	if nav == nil {
		m, err := explore.NewMemoryNavigator(cfg.Explore.StartURL)
		if err != nil {
			m, _ = explore.NewMemoryNavigator("/explore")
		}
		nav = m
	}

	opts := []explore.Option{explore.WithFetchTimeout(cfg.Explore.FetchTimeout)}
	if cfg.Explore.OffsetPaging {
		opts = append(opts, explore.WithOffsetPaging())
	}
	ctrl := explore.New(deps.Reader, opts...)
	ctrl.Observe(explore.Sync(nav))

	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "› przepisy"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)

	si := textinput.New()
	si.Placeholder = "Szukaj przepisów…"
	si.Prompt = "/ "

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	app := &App{
		config:      cfg,
		reader:      deps.Reader,
		identity:    deps.Identity,
		launcher:    deps.Launcher,
		nav:         nav,
		ctrl:        ctrl,
		list:        l,
		searchInput: si,
		viewport:    viewport.New(0, 0),
		spinner:     sp,
		help:        help.New(),
		view:        ViewExplore,
		log:         debuglog.WithFields(map[string]interface{}{"component": "tui"}),
	}
	app.keyHandler = NewKeyHandler(app, cfg)
	return app
}

func (a *App) getRenderer() (*glamour.TermRenderer, error) {
	rc := a.config.UI.Recipe
	wordWrapWidth := (a.width * 9) / 10
	if rc.WordWrapMaxWidth > 0 && wordWrapWidth > rc.WordWrapMaxWidth {
		wordWrapWidth = rc.WordWrapMaxWidth
	}
	if wordWrapWidth < rc.WordWrapMinWidth {
		wordWrapWidth = rc.WordWrapMinWidth
	}
	if wordWrapWidth < 20 {
		wordWrapWidth = 20
	}

	if a.glamourRenderer == nil || abs(a.rendererWidth-wordWrapWidth) > 10 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrapWidth),
		)
		if err != nil {
			return nil, err
		}
		a.glamourRenderer = r
		a.rendererWidth = wordWrapWidth
	}
	return a.glamourRenderer, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Init reads the starting address, issues the first fetch and starts the
// viewer lookup.
func (a *App) Init() tea.Cmd {
	loc := explore.ParseLocation(a.nav.Location().Query())
	a.searchInput.SetValue(loc.Query.Term)
	return tea.Batch(
		a.fetch(a.ctrl.Init(loc)),
		a.resolveViewer(),
		a.spinner.Tick,
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.list.SetSize(msg.Width, max(msg.Height-5, 3))
		a.viewport.Width = msg.Width
		a.viewport.Height = max(msg.Height-3, 3)
		a.searchInput.Width = max(msg.Width-6, 10)
		a.help.Width = msg.Width
		return a, nil

	case tea.KeyMsg:
		a.flash = ""
		return a.keyHandler.HandleKey(msg)

	case pageLoadedMsg:
		if a.ctrl.Complete(msg.done) {
			a.syncList()
		}
		return a, nil

	case viewerResolvedMsg:
		a.ctrl.SetViewer(msg.res)
		a.syncList()
		return a, nil

	case searchDebounceFireMsg:
		if msg.seq != a.searchSeq {
			return a, nil
		}
		return a, a.fetch(a.ctrl.Submit(a.searchInput.Value()))

	case recipeLoadedMsg:
		if a.view != ViewRecipe || a.current == nil || a.current.ID != msg.id {
			return a, nil
		}
		a.recipeLoading = false
		a.recipeErr = msg.err
		if msg.err != nil {
			a.log.Warnf("loading recipe failed: %v", msg.err)
			a.viewport.SetContent(errorContent(msg.err))
			return a, nil
		}
		a.recipe = msg.recipe
		a.viewport.SetContent(msg.content)
		a.viewport.GotoTop()
		return a, nil

	case openedMsg:
		if msg.err != nil {
			a.log.Warnf("opening %s failed: %v", msg.target, msg.err)
			a.flash = "Nie udało się otworzyć: " + msg.target
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func errorContent(err error) string {
	if recipes.IsNotFound(err) {
		return "Przepis nie istnieje."
	}
	return "Nie udało się wczytać przepisu."
}

// syncList replaces the list items with the current cards, keeping the
// selection where it was.
func (a *App) syncList() {
	cards := a.ctrl.Cards()
	items := make([]list.Item, len(cards))
	for i, c := range cards {
		items[i] = cardItem{card: c}
	}
	idx := a.list.Index()
	a.list.SetItems(items)
	if idx < len(items) {
		a.list.Select(idx)
	}
}

func (a *App) selectedCard() (explore.Card, bool) {
	item, ok := a.list.SelectedItem().(cardItem)
	if !ok {
		return explore.Card{}, false
	}
	return item.card, true
}

// mediaTarget is the recipe image, else its source page.
func (a *App) mediaTarget() string {
	if a.recipe != nil {
		if a.recipe.ImagePath != "" {
			return a.recipe.ImagePath
		}
		return a.recipe.SourceURL
	}
	if a.current != nil {
		return a.current.ImagePath
	}
	return ""
}

// Address is the current address, as mirrored by the explorer.
func (a *App) Address() string {
	return a.nav.Location().String()
}

// Close disposes the explorer so late completions are ignored.
func (a *App) Close() {
	a.ctrl.Dispose()
}

func (a *App) View() string {
	var content string
	switch a.view {
	case ViewRecipe:
		if a.recipeLoading {
			content = a.spinner.View() + " " + MsgLoadingRecipe
		} else {
			content = a.viewport.View()
		}
	default:
		content = a.exploreView()
	}

	return lipgloss.JoinVertical(lipgloss.Left, content, a.statusBar())
}

func (a *App) exploreView() string {
	state := a.ctrl.State()
	q := a.ctrl.Query()

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		a.searchInput.View(),
		"  ",
		HelpStyle.Render(fmt.Sprintf("%s • %d", q.Sort.Label(), q.PageSize)),
	)

	var body string
	switch {
	case state.ShowEmpty():
		body = lipgloss.NewStyle().
			Width(a.width).
			Height(max(a.height-5, 3)).
			Align(lipgloss.Center, lipgloss.Center).
			Render(GetCompactBanner(MsgEmpty))
	case state.InitialLoading && len(state.Items) == 0:
		body = a.spinner.View() + " " + MsgInitialLoading
	default:
		body = a.list.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

func (a *App) statusBar() string {
	text, kind := statusFor(a.ctrl.State())
	if a.ctrl.State().Loading() {
		text = a.spinner.View() + " " + text
	}
	if kind == StatusError {
		text += " (" + a.keyHandler.keys.Retry.Help().Key + ")"
	}
	if a.flash != "" {
		text = a.flash
		kind = StatusWarn
	}

	parts := []string{
		renderStatus(text, kind),
		LocationStyle.Render(a.Address()),
	}
	if a.view == ViewExplore {
		parts = append(parts, a.help.View(a.keyHandler.keys))
	}
	return strings.Join(parts, "  ")
}
