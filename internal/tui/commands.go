package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/przepisy/internal/explore"
	"github.com/pders01/przepisy/internal/storage"
)

// fetch runs req off the update loop. A nil request issues nothing.
func (a *App) fetch(req *explore.Request) tea.Cmd {
	if req == nil {
		return nil
	}
	return func() tea.Msg {
		return pageLoadedMsg{done: req.Do()}
	}
}

func (a *App) resolveViewer() tea.Cmd {
	req := a.ctrl.ResolveViewer(a.identity)
	if req == nil {
		return nil
	}
	return func() tea.Msg {
		return viewerResolvedMsg{res: req.Do()}
	}
}

// loadRecipe fetches and renders one recipe. The renderer is picked on the
// update loop; the command only uses it. Closing the app cancels the fetch.
func (a *App) loadRecipe(id string) tea.Cmd {
	timeout := a.config.Explore.FetchTimeout
	reader := a.reader
	parent := a.ctrl.Context()
	r, rerr := a.getRenderer()
	if rerr != nil {
		a.log.Warnf("markdown renderer unavailable: %v", rerr)
	}
	return func() tea.Msg {
		ctx := parent
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		recipe, err := reader.Recipe(ctx, id)
		if err != nil {
			return recipeLoadedMsg{id: id, err: err}
		}

		md := recipeMarkdown(recipe)
		if r == nil {
			return recipeLoadedMsg{id: id, recipe: recipe, content: md}
		}
		rendered, err := r.Render(md)
		if err != nil {
			return recipeLoadedMsg{id: id, recipe: recipe, content: md}
		}
		return recipeLoadedMsg{id: id, recipe: recipe, content: rendered}
	}
}

func (a *App) openURL(target string) tea.Cmd {
	launcher := a.launcher
	return func() tea.Msg {
		if launcher == nil {
			return openedMsg{target: target, err: fmt.Errorf("no launcher configured")}
		}
		return openedMsg{target: target, err: launcher.Open(target)}
	}
}

// recipeMarkdown lays a recipe out for the detail view.
func recipeMarkdown(r *storage.Recipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Name)
	if r.CategoryName != "" {
		fmt.Fprintf(&b, "*%s*\n\n", r.CategoryName)
	}
	if r.SourceURL != "" {
		fmt.Fprintf(&b, "[Źródło](%s)\n\n", r.SourceURL)
	}
	if r.Description != "" {
		b.WriteString(r.Description)
		b.WriteString("\n\n")
	}
	if len(r.Ingredients) > 0 {
		b.WriteString("## Składniki\n\n")
		for _, ing := range r.Ingredients {
			fmt.Fprintf(&b, "- %s\n", ing)
		}
		b.WriteString("\n")
	}
	if r.Instructions != "" {
		b.WriteString("## Przygotowanie\n\n")
		b.WriteString(r.Instructions)
		b.WriteString("\n")
	}
	return b.String()
}
