package explore

import (
	"errors"
	"slices"

	"github.com/pders01/przepisy/internal/recipes"
)

// FetchErrorMessage is the only failure text users see; details go to the log.
const FetchErrorMessage = "Nie udało się wczytać przepisów. Spróbuj ponownie."

// FetchError wraps a failed page fetch.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return FetchErrorMessage }

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err came from a failed page fetch.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInitialLoading
	PhaseLoadingMore
	PhaseError
	PhaseValidationBlocked
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialLoading:
		return "initial-loading"
	case PhaseLoadingMore:
		return "loading-more"
	case PhaseError:
		return "error"
	case PhaseValidationBlocked:
		return "validation-blocked"
	default:
		return "idle"
	}
}

// ResultState is what is on screen. At most one of ErrorMessage and
// ValidationMessage is set.
type ResultState struct {
	Items             []recipes.Summary
	PageInfo          recipes.PageInfo
	InitialLoading    bool
	LoadingMore       bool
	ErrorMessage      string
	ValidationMessage string
}

func (r ResultState) Phase() Phase {
	switch {
	case r.ValidationMessage != "":
		return PhaseValidationBlocked
	case r.InitialLoading:
		return PhaseInitialLoading
	case r.LoadingMore:
		return PhaseLoadingMore
	case r.ErrorMessage != "":
		return PhaseError
	}
	return PhaseIdle
}

// Loading reports whether any fetch is in flight.
func (r ResultState) Loading() bool {
	return r.InitialLoading || r.LoadingMore
}

// ShowEmpty reports whether the "no recipes" state should be rendered:
// nothing to show and nothing pending or failed.
func (r ResultState) ShowEmpty() bool {
	return len(r.Items) == 0 && r.Phase() == PhaseIdle
}

// CanLoadMore reports whether a continuation may be requested now.
func (r ResultState) CanLoadMore() bool {
	return r.PageInfo.HasMore && !r.Loading() && r.ValidationMessage == ""
}

func (r ResultState) clone() ResultState {
	r.Items = slices.Clone(r.Items)
	return r
}
