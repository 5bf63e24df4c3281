// Package sqlutil provides identifier quoting and placeholder helpers shared by
// every SQL dialect gomigrate speaks.
package sqlutil

import (
	"regexp"
	"strings"
)

// QuoteBacktick quotes an identifier with backticks (MySQL).
// Embedded backticks are doubled.
func QuoteBacktick(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteDouble quotes an identifier with ANSI double quotes (PostgreSQL, SQLite).
func QuoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteBracket quotes an identifier with square brackets (SQL Server).
func QuoteBracket(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// validIdentifierRegex is the allow-list every table and column name must pass
// before it is embedded in SQL text.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// IsValidIdentifier checks that a name only contains alphanumeric characters
// and underscores.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// ValidateIdentifiers returns an error for the first name that fails the allow-list.
func ValidateIdentifiers(names ...string) error {
	for _, name := range names {
		if !IsValidIdentifier(name) {
			return &InvalidIdentifierError{Name: name}
		}
	}
	return nil
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}

// QuoteList quotes every name and joins them with ", ".
func QuoteList(names []string, quote func(string) string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quote(name)
	}
	return strings.Join(quoted, ", ")
}

// Placeholders renders count bind markers starting at position start (1-based),
// e.g. "?, ?, ?" or "$4, $5, $6".
func Placeholders(start, count int, marker func(int) string) string {
	var sb strings.Builder
	for i := 0; i < count; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(marker(start + i))
	}
	return sb.String()
}
