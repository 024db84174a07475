package resolver

import (
	"fmt"
	"strings"

	"github.com/ozzaii/beatflow/pkg/patterns"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// maxListedMatches caps how many candidates FormatAmbiguousError prints.
const maxListedMatches = 10

// ResolvePatternID resolves a full id or a short id prefix against c.
//
// The function handles three cases:
// 1. Input is an exact id in c - returned as-is
// 2. Input is too short (< 6 chars) - returns validation error
// 3. Input is a prefix - returns the unique match or NotFound/Ambiguous errors
func ResolvePatternID(c patterns.Collection, id string) (string, error) {
	if c.Index(id) >= 0 {
		return id, nil
	}
	if patterns.IsUUID(id) {
		return "", &NotFoundError{ShortID: id}
	}

	if len(id) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(id))
	}

	prefix := strings.ToLower(id)
	var matches []string
	for i := range c {
		if strings.HasPrefix(strings.ToLower(c[i].ID), prefix) {
			matches = append(matches, c[i].ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: id}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: id, Matches: matches}
	}
}

// ShortID returns the display prefix of id.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// NotFoundError indicates no patterns matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no patterns found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple patterns matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d patterns", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError lists the matching ids (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous short ID '%s' matches %d patterns:\n", err.ShortID, len(err.Matches))

	shown := err.Matches
	if len(shown) > maxListedMatches {
		shown = shown[:maxListedMatches]
	}
	for _, m := range shown {
		fmt.Fprintf(&b, "  %s\n", m)
	}
	if rest := len(err.Matches) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "  ...and %d more\n", rest)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the pattern.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
