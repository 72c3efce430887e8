package tui

import (
	"fmt"

	"github.com/pders01/przepisy/internal/explore"
)

// StatusKind indicates severity for status messages.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusSuccess
	StatusWarn
	StatusError
)

const (
	MsgInitialLoading = "Ładowanie przepisów…"
	MsgLoadingMore    = "Wczytywanie kolejnych…"
	MsgLoadingRecipe  = "Otwieranie przepisu…"
	MsgEmpty          = "Brak przepisów"
	MsgNothingToOpen  = "Brak zdjęcia i źródła"
)

func MsgResultsCount(n int, more bool) string {
	s := fmt.Sprintf("%d przepisów", n)
	if n == 1 {
		s = "1 przepis"
	}
	if more {
		s += " • jest więcej"
	}
	return s
}

// statusFor maps the listing state to the status bar line.
func statusFor(state explore.ResultState) (string, StatusKind) {
	switch state.Phase() {
	case explore.PhaseInitialLoading:
		return MsgInitialLoading, StatusInfo
	case explore.PhaseLoadingMore:
		return MsgLoadingMore, StatusInfo
	case explore.PhaseError:
		return state.ErrorMessage, StatusError
	case explore.PhaseValidationBlocked:
		return state.ValidationMessage, StatusWarn
	}
	if state.ShowEmpty() {
		return MsgEmpty, StatusInfo
	}
	return MsgResultsCount(len(state.Items), state.PageInfo.HasMore), StatusSuccess
}

func renderStatus(text string, kind StatusKind) string {
	switch kind {
	case StatusError:
		return StatusErrorStyle.Render("✗ " + text)
	case StatusWarn:
		return StatusWarnStyle.Render("! " + text)
	case StatusSuccess:
		return StatusSuccessStyle.Render(text)
	default:
		return StatusInfoStyle.Render(text)
	}
}
