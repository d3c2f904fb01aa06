package query

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxKeywords is the most terms the provider accepts in one comparison.
const MaxKeywords = 5

// Cause identifies why a keyword list was rejected.
type Cause string

const (
	CauseMissing      Cause = "missing"
	CauseEmpty        Cause = "empty"
	CauseTooMany      Cause = "too_many"
	CauseNoValidTerms Cause = "no_valid_after_cleaning"
)

// ValidationError is returned when the raw keyword parameter cannot be
// turned into a usable keyword list. No upstream call is made.
type ValidationError struct {
	Cause    Cause
	Received int // token count, set for CauseTooMany
}

func (e *ValidationError) Error() string {
	return "invalid keywords: " + e.Message()
}

// Message is the caller-facing explanation for the rejection.
func (e *ValidationError) Message() string {
	switch e.Cause {
	case CauseMissing:
		return "keywords parameter required"
	case CauseEmpty:
		return "keywords parameter must contain at least one keyword"
	case CauseTooMany:
		return fmt.Sprintf("too many keywords: received %d, maximum is %d", e.Received, MaxKeywords)
	case CauseNoValidTerms:
		return "no valid keywords remain after removing unsupported characters"
	default:
		return string(e.Cause)
	}
}

var disallowed = regexp.MustCompile(`[^A-Za-z0-9_\s-]`)

// ParseKeywords splits a comma-separated keyword list and cleans each term.
// present is false when the parameter was not supplied at all.
func ParseKeywords(raw string, present bool) ([]string, error) {
	if !present {
		return nil, &ValidationError{Cause: CauseMissing}
	}

	var tokens []string
	for _, part := range strings.Split(raw, ",") {
		if tok := strings.TrimSpace(part); tok != "" {
			tokens = append(tokens, tok)
		}
	}

	if len(tokens) == 0 {
		return nil, &ValidationError{Cause: CauseEmpty}
	}
	if len(tokens) > MaxKeywords {
		return nil, &ValidationError{Cause: CauseTooMany, Received: len(tokens)}
	}

	keywords := tokens[:0]
	for _, tok := range tokens {
		if clean := strings.TrimSpace(disallowed.ReplaceAllString(tok, "")); clean != "" {
			keywords = append(keywords, clean)
		}
	}

	if len(keywords) == 0 {
		return nil, &ValidationError{Cause: CauseNoValidTerms}
	}
	return keywords, nil
}
