package strx

import (
	"bufio"
	"strings"
	"unicode"
	"unicode/utf8"
)

func HeredocTrim(text string) string {
	sb := strings.Builder{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		sb.WriteString(strings.TrimSpace(scanner.Text()))
		sb.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return text
	}
	return strings.TrimSpace(sb.String())
}

// Printable makes untrusted process output safe to put in a log line:
// invalid UTF-8 and control characters (terminal escapes included) become '?',
// and the result is cut to at most limit runes.
func Printable(b []byte, limit int) string {
	sb := strings.Builder{}
	n := 0
	for len(b) > 0 {
		if limit > 0 && n >= limit {
			sb.WriteString("...")
			break
		}
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		switch {
		case r == utf8.RuneError && size <= 1:
			sb.WriteByte('?')
		case r == '\n' || r == '\t':
			sb.WriteByte(' ')
		case !unicode.IsPrint(r):
			sb.WriteByte('?')
		default:
			sb.WriteRune(r)
		}
		n++
	}
	return strings.TrimSpace(sb.String())
}
