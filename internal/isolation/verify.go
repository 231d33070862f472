package isolation

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/hashmap-kz/colorclip/internal/colorize"
	"golang.org/x/net/html"
)

// ErrRejected is returned when helper output fails verification.
var ErrRejected = errors.New("helper output rejected")

func rejectf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// Verify checks markup produced by an untrusted helper for text, and returns the
// same markup rendered locally from the verified (char, color) list.
//
// Accepted markup is exactly what colorize would have produced: bare or escaped
// text plus non-nested spans of the single allowed form. The decoded text must
// be byte-equal to text.
func Verify(markup, text string) (string, error) {
	if !utf8.ValidString(markup) {
		return "", rejectf("invalid utf-8")
	}

	var (
		out   colorize.ColoredString
		plain strings.Builder
		color string
		open  bool
	)

	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if !errors.Is(z.Err(), io.EOF) {
				return "", rejectf("tokenize: %v", z.Err())
			}
			if open {
				return "", rejectf("unclosed span")
			}
			if plain.String() != text {
				return "", rejectf("decoded text differs from input")
			}
			canonical := out.String()
			if canonical != markup {
				return "", rejectf("markup is not in canonical form")
			}
			return canonical, nil

		case html.TextToken:
			// Raw, not Text: Text folds CR/CRLF into LF.
			s := html.UnescapeString(string(z.Raw()))
			plain.WriteString(s)
			for _, r := range s {
				out.Append(colorize.ColoredChar{Char: r, Color: color})
			}

		case html.StartTagToken:
			if open {
				return "", rejectf("nested span")
			}
			tok := z.Token()
			if tok.Data != "span" {
				return "", rejectf("unexpected tag <%s>", tok.Data)
			}
			c, err := spanColor(tok.Attr)
			if err != nil {
				return "", err
			}
			color, open = c, true

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) != "span" || !open {
				return "", rejectf("unexpected end tag </%s>", name)
			}
			color, open = "", false

		default:
			return "", rejectf("unexpected %s token", tt)
		}
	}
}

func spanColor(attrs []html.Attribute) (string, error) {
	if len(attrs) != 2 {
		return "", rejectf("span must carry exactly two attributes, got %d", len(attrs))
	}
	var color, style string
	for _, a := range attrs {
		switch {
		case a.Namespace != "":
			return "", rejectf("namespaced attribute %s:%s", a.Namespace, a.Key)
		case a.Key == "data-mx-color":
			color = a.Val
		case a.Key == "style":
			style = a.Val
		default:
			return "", rejectf("unexpected attribute %q", a.Key)
		}
	}
	if !colorize.ValidColor(color) {
		return "", rejectf("invalid color %q", color)
	}
	if style != "color: "+color+";" {
		return "", rejectf("style does not match color")
	}
	return color, nil
}
