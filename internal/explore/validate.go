package explore

import "unicode/utf8"

// MinTermLength is the shortest non-empty search term, in runes.
const MinTermLength = 2

// ValidationMessage is shown inline when a search term is too short.
const ValidationMessage = "Wpisz co najmniej 2 znaki"

// ValidationError reports a search term that must not reach the fetcher.
type ValidationError struct {
	Term    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate accepts an empty term (no filter) and terms of at least
// MinTermLength runes. A single rune is rejected.
func Validate(term string) error {
	if utf8.RuneCountInString(term) == 1 {
		return &ValidationError{Term: term, Message: ValidationMessage}
	}
	return nil
}
