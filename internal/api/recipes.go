package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pders01/przepisy/internal/explore"
	"github.com/pders01/przepisy/internal/recipes"
)

type recipeHandler struct {
	recipes recipes.Reader
}

// List handles GET /api/recipes. Query parameters follow the explorer's
// address: q, sort, limit (or size), cursor and page. Unknown sort and
// limit values fall back to their defaults.
func (h *recipeHandler) List(c *gin.Context) {
	loc := explore.ParseLocation(c.Request.URL.Query())
	if err := explore.Validate(loc.Query.Term); err != nil {
		_ = c.Error(err)
		return
	}

	req := recipes.PageRequest{
		Query:  loc.Query.Term,
		Sort:   loc.Query.Sort,
		Limit:  loc.Query.PageSize,
		Cursor: strings.TrimSpace(c.Query("cursor")),
		Page:   loc.Page,
	}

	page, err := h.recipes.FetchPage(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get handles GET /api/recipes/:id.
func (h *recipeHandler) Get(c *gin.Context) {
	recipe, err := h.recipes.Recipe(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}
