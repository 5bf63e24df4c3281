package sqlutil

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteBacktick(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Simple table name", input: "users", expected: "`users`"},
		{name: "Mixed case", input: "MyTable", expected: "`MyTable`"},
		{name: "Embedded backtick", input: "my`table", expected: "`my``table`"},
		{name: "Empty string", input: "", expected: "``"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteBacktick(tt.input))
		})
	}
}

func TestQuoteDouble(t *testing.T) {
	assert.Equal(t, `"employees"`, QuoteDouble("employees"))
	assert.Equal(t, `"a""b"`, QuoteDouble(`a"b`))
}

func TestQuoteBracket(t *testing.T) {
	assert.Equal(t, "[employees]", QuoteBracket("employees"))
	assert.Equal(t, "[a]]b]", QuoteBracket("a]b"))
}

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{input: "users", valid: true},
		{input: "order_items", valid: true},
		{input: "Table123", valid: true},
		{input: "___", valid: true},
		{input: "", valid: false},
		{input: "my table", valid: false},
		{input: "users;DROP", valid: false},
		{input: "a-b", valid: false},
		{input: "schema.table", valid: false},
		{input: "café", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidIdentifier(tt.input))
		})
	}
}

func TestValidateIdentifiers(t *testing.T) {
	assert.NoError(t, ValidateIdentifiers("id", "name", "age"))
	assert.NoError(t, ValidateIdentifiers())

	err := ValidateIdentifiers("id", "full name", "bad-col")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full name")

	var invalid *InvalidIdentifierError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "full name", invalid.Name)
}

func TestQuoteList(t *testing.T) {
	assert.Equal(t, "`id`, `name`", QuoteList([]string{"id", "name"}, QuoteBacktick))
	assert.Equal(t, "", QuoteList(nil, QuoteBacktick))
}

func TestPlaceholders(t *testing.T) {
	question := func(int) string { return "?" }
	dollar := func(n int) string { return "$" + strconv.Itoa(n) }

	assert.Equal(t, "?, ?, ?", Placeholders(1, 3, question))
	assert.Equal(t, "$4, $5", Placeholders(4, 2, dollar))
	assert.Equal(t, "", Placeholders(1, 0, question))
}
