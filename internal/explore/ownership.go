package explore

import (
	"context"
	"time"
)

// Viewer is the identity recipes are matched against. An empty UserID is
// an anonymous viewer.
type Viewer struct {
	UserID string
}

func (v Viewer) Anonymous() bool { return v.UserID == "" }

// Owns reports whether authorID belongs to the viewer. Anonymous viewers
// own nothing.
func (v Viewer) Owns(authorID string) bool {
	return !v.Anonymous() && authorID == v.UserID
}

// Annotate returns a copy of cards with IsOwnRecipe set for v.
func Annotate(cards []Card, v Viewer) []Card {
	out := make([]Card, len(cards))
	for i, c := range cards {
		c.IsOwnRecipe = v.Owns(c.AuthorID)
		out[i] = c
	}
	return out
}

// IdentityProvider resolves the current viewer. An empty id means anonymous.
type IdentityProvider interface {
	CurrentViewerID(ctx context.Context) (string, error)
}

// ViewerRequest is a pending identity lookup. Do may run off the UI loop;
// its result goes back through Controller.SetViewer.
type ViewerRequest struct {
	provider IdentityProvider
	timeout  time.Duration
	ctx      context.Context
}

// ViewerResolution is the outcome of a ViewerRequest.
type ViewerResolution struct {
	UserID string
	Err    error
}

func (r *ViewerRequest) Do() ViewerResolution {
	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	id, err := r.provider.CurrentViewerID(ctx)
	return ViewerResolution{UserID: id, Err: err}
}
