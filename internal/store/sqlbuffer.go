package store

import (
	"regexp"
	"strconv"
	"strings"
)

// functionCallPattern matches strings of the identifier-then-parenthesized-
// arguments form, e.g. "now()". Such values are emitted as SQL expressions
// rather than quoted literals.
var functionCallPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*\(.*\)$`)

// SQLBuffer accumulates SQL text incrementally with typed appenders.
// Coalesce hands back the assembled statement. Plain Append never quotes or
// escapes; callers use Quote for untrusted string content.
type SQLBuffer struct {
	sb strings.Builder
}

func (b *SQLBuffer) Append(s string) *SQLBuffer {
	b.sb.WriteString(s)
	return b
}

func (b *SQLBuffer) AppendByte(c byte) *SQLBuffer {
	b.sb.WriteByte(c)
	return b
}

func (b *SQLBuffer) AppendInt(v int64) *SQLBuffer {
	b.sb.WriteString(strconv.FormatInt(v, 10))
	return b
}

func (b *SQLBuffer) AppendFloat(v float64) *SQLBuffer {
	b.sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	return b
}

// Quote appends s as a single-quoted SQL literal, doubling any embedded
// single quotes.
func (b *SQLBuffer) Quote(s string) *SQLBuffer {
	b.sb.WriteByte('\'')
	b.sb.WriteString(strings.ReplaceAll(s, "'", "''"))
	b.sb.WriteByte('\'')
	return b
}

// AppendStringValue renders a string value the way the query language
// defines it: function-call expressions pass through verbatim, everything
// else becomes a quoted literal.
func (b *SQLBuffer) AppendStringValue(s string) *SQLBuffer {
	if functionCallPattern.MatchString(s) {
		return b.Append(s)
	}
	return b.Quote(s)
}

func (b *SQLBuffer) Len() int {
	return b.sb.Len()
}

// Coalesce returns the accumulated SQL text.
func (b *SQLBuffer) Coalesce() string {
	return b.sb.String()
}
