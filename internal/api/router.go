// Package api serves the recipe listing over HTTP so other instances can
// browse it with recipes.Client.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pders01/przepisy/internal/debuglog"
	"github.com/pders01/przepisy/internal/explore"
	"github.com/pders01/przepisy/internal/recipes"
)

var startTime = time.Now()

// Dependencies holds what the handlers need.
type Dependencies struct {
	Recipes recipes.Reader
}

// NewRouter returns a gin engine with recovery, request logging and all
// routes registered.
func NewRouter(deps *Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	SetupRouter(r, deps)
	return r
}

// SetupRouter configures all API routes
func SetupRouter(r *gin.Engine, deps *Dependencies) {
	h := &recipeHandler{recipes: deps.Recipes}

	r.GET("/healthz", health)

	g := r.Group("/api/recipes")
	g.Use(errorMiddleware())
	{
		g.GET("", h.List)
		g.GET("/:id", h.Get)
	}
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(startTime).Round(time.Second).String(),
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		debuglog.WithFields(map[string]interface{}{
			"component": "api",
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  time.Since(start).String(),
		}).Debugf("request served")
	}
}

// errorMiddleware turns the last handler error into a JSON response.
// Backend details are logged, never returned.
func errorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var ve *explore.ValidationError
		switch {
		case errors.As(err, &ve):
			c.JSON(http.StatusBadRequest, gin.H{"message": ve.Message})
		case errors.Is(err, recipes.ErrInvalidCursor):
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid cursor"})
		case errors.Is(err, recipes.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "recipe not found"})
		default:
			debuglog.Errorf("api %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": explore.FetchErrorMessage})
		}
	}
}
