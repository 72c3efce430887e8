package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/przepisy/internal/config"
	"github.com/pders01/przepisy/internal/explore"
	"github.com/pders01/przepisy/internal/recipes"
	"github.com/pders01/przepisy/internal/session"
	"github.com/pders01/przepisy/internal/storage"
)

func seededService(t *testing.T, n int) *recipes.Service {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "tui.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var all []*storage.Recipe
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("Ciasto %02d", i)
		if i%10 == 0 {
			name = fmt.Sprintf("Zupa %02d", i)
		}
		all = append(all, &storage.Recipe{
			ID:           fmt.Sprintf("r%02d", i),
			Name:         name,
			AuthorID:     fmt.Sprintf("u%d", i%3),
			SourceURL:    fmt.Sprintf("https://kuchnia.example/%02d", i),
			Ingredients:  []string{"mąka", "jajka"},
			Instructions: "Wymieszać i upiec.",
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		})
	}
	if len(all) > 0 {
		require.NoError(t, store.SaveRecipes(all))
	}
	return recipes.NewService(store, nil)
}

type testApp struct {
	*App
	nav *explore.MemoryNavigator
}

func newTestApp(t *testing.T, reader recipes.Reader, start string, identity explore.IdentityProvider) testApp {
	t.Helper()
	nav, err := explore.NewMemoryNavigator(start)
	require.NoError(t, err)

	app := NewApp(Deps{
		Config:    config.TestConfig(),
		Reader:    reader,
		Identity:  identity,
		Navigator: nav,
	})
	app.searchInput.Cursor.SetMode(cursor.CursorHide)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	t.Cleanup(app.Close)
	return testApp{App: app, nav: nav}
}

// drain runs cmd and feeds every message the app cares about back into
// Update, following the commands those updates return.
func drain(t *testing.T, app *App, cmd tea.Cmd) {
	t.Helper()
	var run func(cmd tea.Cmd, depth int)
	run = func(cmd tea.Cmd, depth int) {
		if cmd == nil {
			return
		}
		require.Less(t, depth, 32, "command chain did not settle")
		switch msg := cmd().(type) {
		case tea.BatchMsg:
			for _, c := range msg {
				run(c, depth+1)
			}
		case pageLoadedMsg, viewerResolvedMsg, searchDebounceFireMsg, recipeLoadedMsg, openedMsg:
			_, next := app.Update(msg)
			run(next, depth+1)
		}
	}
	run(cmd, 0)
}

func press(t *testing.T, app *App, msg tea.KeyMsg) {
	t.Helper()
	_, cmd := app.Update(msg)
	drain(t, app, cmd)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func itemIDs(app *App) []string {
	var ids []string
	for _, it := range app.list.Items() {
		ids = append(ids, it.(cardItem).card.ID)
	}
	return ids
}

func TestInit_LoadsFirstPageAndCanonicalizesAddress(t *testing.T) {
	app := newTestApp(t, seededService(t, 30), "/explore?q=%20zupa%20&size=24&sort=bogus&utm=x", nil)

	drain(t, app.App, app.Init())

	assert.Equal(t, []string{"r20", "r10", "r00"}, itemIDs(app.App))
	assert.Equal(t, "/explore?limit=24&q=zupa&utm=x", app.Address())
	assert.Equal(t, "zupa", app.searchInput.Value())
	assert.Equal(t, explore.PhaseIdle, app.ctrl.State().Phase())
}

func TestInit_DefaultAddressUntouched(t *testing.T) {
	app := newTestApp(t, seededService(t, 30), "/explore", nil)

	drain(t, app.App, app.Init())

	assert.Len(t, app.list.Items(), 12)
	assert.Equal(t, "/explore", app.Address())
	assert.Equal(t, 0, app.nav.Replacements())
}

func TestSearch_SingleRuneIsBlocked(t *testing.T) {
	app := newTestApp(t, seededService(t, 30), "/explore", nil)
	drain(t, app.App, app.Init())

	press(t, app.App, runes("/"))
	require.True(t, app.searchInput.Focused())
	press(t, app.App, runes("z"))

	state := app.ctrl.State()
	assert.Equal(t, explore.ValidationMessage, state.ValidationMessage)
	assert.Equal(t, explore.PhaseValidationBlocked, state.Phase())
	assert.Contains(t, app.View(), explore.ValidationMessage)
}

func TestSearch_DebounceKeepsOnlyLatestTerm(t *testing.T) {
	app := newTestApp(t, seededService(t, 30), "/explore", nil)
	drain(t, app.App, app.Init())
	press(t, app.App, runes("/"))

	_, first := app.Update(runes("zup"))
	_, second := app.Update(runes("a"))
	token := app.ctrl.Token()

	drain(t, app.App, first)
	assert.Equal(t, token, app.ctrl.Token(), "stale debounce must not submit")

	drain(t, app.App, second)
	assert.Equal(t, []string{"r20", "r10", "r00"}, itemIDs(app.App))
	assert.Equal(t, "/explore?q=zupa", app.Address())
}

func TestLoadMore_AppendsAndStopsAtEnd(t *testing.T) {
	app := newTestApp(t, seededService(t, 30), "/explore", nil)
	drain(t, app.App, app.Init())
	require.True(t, app.ctrl.State().PageInfo.HasMore)

	press(t, app.App, tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Len(t, app.list.Items(), 24)
	assert.Equal(t, "/explore", app.Address(), "continuations never touch the address")

	// reaching the last card pulls the next page
	press(t, app.App, tea.KeyMsg{Type: tea.KeyEnd})
	assert.Len(t, app.list.Items(), 30)
	assert.False(t, app.ctrl.State().PageInfo.HasMore)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Nil(t, cmd)
}

func TestSortAndPageSize_UpdateAddress(t *testing.T) {
	app := newTestApp(t, seededService(t, 30), "/explore", nil)
	drain(t, app.App, app.Init())

	press(t, app.App, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Equal(t, "r00", itemIDs(app.App)[0])
	assert.Equal(t, "/explore?sort=created_at.asc", app.Address())

	press(t, app.App, tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Len(t, app.list.Items(), 24)
	assert.Equal(t, "/explore?limit=24&sort=created_at.asc", app.Address())
}

func TestOwnRecipesAreMarked(t *testing.T) {
	app := newTestApp(t, seededService(t, 30), "/explore", session.Static("u1"))
	drain(t, app.App, app.Init())

	require.Equal(t, "u1", app.ctrl.Viewer().UserID)
	for _, it := range app.list.Items() {
		item := it.(cardItem)
		assert.Equal(t, item.card.AuthorID == "u1", item.card.IsOwnRecipe, item.card.ID)
		assert.Equal(t, item.card.IsOwnRecipe, strings.Contains(item.Title(), "★"), item.card.ID)
	}
}

type failingIdentity struct{}

func (failingIdentity) CurrentViewerID(context.Context) (string, error) {
	return "", errors.New("session store down")
}

func TestViewerFailureStaysAnonymous(t *testing.T) {
	app := newTestApp(t, seededService(t, 30), "/explore", failingIdentity{})
	drain(t, app.App, app.Init())

	assert.True(t, app.ctrl.Viewer().Anonymous())
	assert.Len(t, app.list.Items(), 12)
	for _, c := range app.ctrl.Cards() {
		assert.False(t, c.IsOwnRecipe)
	}
}

func TestRecipeDetail_OpenAndBack(t *testing.T) {
	app := newTestApp(t, seededService(t, 30), "/explore", nil)
	drain(t, app.App, app.Init())

	press(t, app.App, tea.KeyMsg{Type: tea.KeyDown})
	press(t, app.App, tea.KeyMsg{Type: tea.KeyEnter})

	require.Equal(t, ViewRecipe, app.view)
	require.NotNil(t, app.recipe)
	assert.Equal(t, "r28", app.recipe.ID)
	assert.False(t, app.recipeLoading)
	assert.Equal(t, "https://kuchnia.example/28", app.mediaTarget())

	press(t, app.App, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewExplore, app.view)
	assert.Nil(t, app.recipe)
	assert.Equal(t, 1, app.list.Index())
}

func TestRecipeDetail_StaleLoadIgnored(t *testing.T) {
	app := newTestApp(t, seededService(t, 30), "/explore", nil)
	drain(t, app.App, app.Init())

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	press(t, app.App, tea.KeyMsg{Type: tea.KeyEsc})
	drain(t, app.App, cmd)

	assert.Equal(t, ViewExplore, app.view)
	assert.Nil(t, app.recipe)
}

func TestEmptyState(t *testing.T) {
	app := newTestApp(t, seededService(t, 0), "/explore", nil)
	drain(t, app.App, app.Init())

	assert.True(t, app.ctrl.State().ShowEmpty())
	assert.Contains(t, app.View(), MsgEmpty)
}

type flakyReader struct {
	recipes.Reader
	fail  bool
	calls int
}

func (f *flakyReader) FetchPage(ctx context.Context, req recipes.PageRequest) (*recipes.Page, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("connection refused")
	}
	return f.Reader.FetchPage(ctx, req)
}

func TestFetchErrorThenRetry(t *testing.T) {
	reader := &flakyReader{Reader: seededService(t, 30), fail: true}
	app := newTestApp(t, reader, "/explore?q=zupa", nil)
	drain(t, app.App, app.Init())

	state := app.ctrl.State()
	assert.Equal(t, explore.FetchErrorMessage, state.ErrorMessage)
	assert.False(t, state.ShowEmpty())
	view := app.View()
	assert.Contains(t, view, explore.FetchErrorMessage)
	assert.NotContains(t, view, "connection refused")

	reader.fail = false
	press(t, app.App, tea.KeyMsg{Type: tea.KeyCtrlR})

	assert.Empty(t, app.ctrl.State().ErrorMessage)
	assert.Equal(t, []string{"r20", "r10", "r00"}, itemIDs(app.App))
	assert.Equal(t, "/explore?q=zupa", app.Address())
}

func TestFailedLoadMore_ScrollingDoesNotRefetch(t *testing.T) {
	reader := &flakyReader{Reader: seededService(t, 30)}
	app := newTestApp(t, reader, "/explore", nil)
	drain(t, app.App, app.Init())
	require.Len(t, app.list.Items(), 12)

	reader.fail = true
	press(t, app.App, tea.KeyMsg{Type: tea.KeyEnd})
	require.Equal(t, explore.PhaseError, app.ctrl.State().Phase())
	assert.Len(t, app.list.Items(), 12)
	calls := reader.calls

	press(t, app.App, tea.KeyMsg{Type: tea.KeyDown})
	press(t, app.App, tea.KeyMsg{Type: tea.KeyUp})
	press(t, app.App, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, calls, reader.calls, "only retry fetches after a failure")
	assert.Equal(t, explore.FetchErrorMessage, app.ctrl.State().ErrorMessage)

	reader.fail = false
	press(t, app.App, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Equal(t, calls+1, reader.calls)
	assert.Len(t, app.list.Items(), 24)
	assert.Empty(t, app.ctrl.State().ErrorMessage)
}

type ctxReader struct {
	recipes.Reader
}

func (r ctxReader) Recipe(ctx context.Context, id string) (*storage.Recipe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Reader.Recipe(ctx, id)
}

func TestRecipeLoadCancelledOnClose(t *testing.T) {
	app := newTestApp(t, ctxReader{Reader: seededService(t, 3)}, "/explore", nil)

	loaded, ok := app.loadRecipe("r01")().(recipeLoadedMsg)
	require.True(t, ok)
	require.NoError(t, loaded.err)
	assert.Equal(t, "r01", loaded.recipe.ID)

	cmd := app.loadRecipe("r02")
	app.Close()
	msg, ok := cmd().(recipeLoadedMsg)
	require.True(t, ok)
	assert.ErrorIs(t, msg.err, context.Canceled)
}

func TestRecipeMarkdown(t *testing.T) {
	md := recipeMarkdown(&storage.Recipe{
		Name:         "Pierogi ruskie",
		CategoryName: "Obiady",
		SourceURL:    "https://kuchnia.example/pierogi",
		Ingredients:  []string{"mąka", "ziemniaki"},
		Instructions: "Ulepić pierogi.",
	})

	assert.True(t, strings.HasPrefix(md, "# Pierogi ruskie\n"))
	assert.Contains(t, md, "*Obiady*")
	assert.Contains(t, md, "[Źródło](https://kuchnia.example/pierogi)")
	assert.Contains(t, md, "## Składniki\n\n- mąka\n- ziemniaki\n")
	assert.Contains(t, md, "## Przygotowanie\n\nUlepić pierogi.")

	bare := recipeMarkdown(&storage.Recipe{Name: "Chleb"})
	assert.Equal(t, "# Chleb\n\n", bare)
}
