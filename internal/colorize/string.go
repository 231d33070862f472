package colorize

import (
	"fmt"
	"strings"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// EscapeHTML escapes the five characters that are significant in HTML text and
// attribute values. Quotes are escaped too.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

func tagStart(color string) string {
	return fmt.Sprintf("<span data-mx-color='%s' style='color: %s;'>", color, color)
}

const tagEnd = "</span>"

// ColoredChar is a single code point with its color. An empty Color means uncolored.
type ColoredChar struct {
	Char  rune
	Color string
}

func (c ColoredChar) HTML() string {
	return EscapeHTML(string(c.Char))
}

// Run is a maximal sequence of characters sharing one color.
type Run struct {
	Text  string
	Color string
}

// ColoredString is an ordered list of colored characters that renders to span markup.
type ColoredString struct {
	chars []ColoredChar
}

func (s *ColoredString) Append(chars ...ColoredChar) *ColoredString {
	s.chars = append(s.chars, chars...)
	return s
}

func (s *ColoredString) Len() int {
	return len(s.chars)
}

func (s *ColoredString) Chars() []ColoredChar {
	out := make([]ColoredChar, len(s.chars))
	copy(out, s.chars)
	return out
}

// Runs groups consecutive characters of the same color.
func (s *ColoredString) Runs() []Run {
	var runs []Run
	var sb strings.Builder
	for i, c := range s.chars {
		if i > 0 && c.Color != s.chars[i-1].Color {
			runs = append(runs, Run{Text: sb.String(), Color: s.chars[i-1].Color})
			sb.Reset()
		}
		sb.WriteRune(c.Char)
	}
	if len(s.chars) > 0 {
		runs = append(runs, Run{Text: sb.String(), Color: s.chars[len(s.chars)-1].Color})
	}
	return runs
}

// String renders the markup. A span is opened only when the color changes,
// uncolored characters are written bare, and spans never nest.
func (s *ColoredString) String() string {
	var sb strings.Builder
	for _, r := range s.Runs() {
		if r.Color != "" {
			sb.WriteString(tagStart(r.Color))
		}
		sb.WriteString(EscapeHTML(r.Text))
		if r.Color != "" {
			sb.WriteString(tagEnd)
		}
	}
	return sb.String()
}
