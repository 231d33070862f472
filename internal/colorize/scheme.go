package colorize

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	ErrUnknownScheme = errors.New("unknown color scheme")
	ErrInvalidColor  = errors.New("invalid color")
)

const (
	DefaultColor   = "#eeaaff"
	gradientPrefix = "gradient:"
)

// Position is everything a scheme may look at when choosing a color.
// Index and Length count code points.
type Position struct {
	Char      rune
	Index     int
	Length    int
	WordIndex int
	WordCount int
}

// ColorFunc picks the color for one character. An empty result leaves it uncolored.
type ColorFunc func(p Position) string

var (
	trans3    = []string{"#5BCEFA", "#F5A9B8", "#FFFFFF"}
	trans5    = []string{"#5BCEFA", "#F5A9B8", "#FFFFFF", "#F5A9B8", "#5BCEFA"}
	trans5Lp  = []string{"#5BCEFA", "#F5A9B8", "#FFFFFF", "#F5A9B8"}
	nonbinary = []string{"#FCF434", "#FFFFFF", "#9C59D1", "#2C2C2C"}
)

// stripes spreads the palette evenly over the whole text.
func stripes(colors []string) ColorFunc {
	return func(p Position) string {
		return colors[p.Index*len(colors)/p.Length]
	}
}

// loop cycles through the palette one character at a time.
func loop(colors []string) ColorFunc {
	return func(p Position) string {
		return colors[p.Index%len(colors)]
	}
}

// words spreads the palette evenly over the words of the text.
func words(colors []string) ColorFunc {
	return func(p Position) string {
		return colors[p.WordIndex*len(colors)/p.WordCount]
	}
}

func solid(color string) ColorFunc {
	return func(Position) string {
		return color
	}
}

var schemes = map[string]ColorFunc{
	"default":      solid(DefaultColor),
	"none":         solid(""),
	"trans":        stripes(trans5),
	"trans3":       stripes(trans3),
	"trans5":       stripes(trans5),
	"nonbinary":    stripes(nonbinary),
	"nb":           stripes(nonbinary),
	"trans3-loop":  loop(trans3),
	"trans5-loop":  loop(trans5Lp),
	"nb-loop":      loop(nonbinary),
	"trans5-words": words(trans5),
	"nb-words":     words(nonbinary),
}

// Names returns the registered scheme names, sorted.
func Names() []string {
	names := make([]string, 0, len(schemes))
	for k := range schemes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a scheme name. Besides the registered names it accepts a literal
// hex color ("#abc", "#aabbcc") and "gradient:#from,...,#to".
func Lookup(name string) (ColorFunc, error) {
	switch {
	case name == "":
		return schemes["default"], nil
	case strings.HasPrefix(name, "#"):
		if !ValidColor(name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidColor, name)
		}
		return solid(name), nil
	case strings.HasPrefix(name, gradientPrefix):
		return gradient(strings.TrimPrefix(name, gradientPrefix))
	}
	fn, ok := schemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
	return fn, nil
}

// ValidColor reports whether c is "#" followed by 3 or 6 hex digits.
func ValidColor(c string) bool {
	if (len(c) != 4 && len(c) != 7) || c[0] != '#' {
		return false
	}
	// Hex parses with Sscanf and tolerates trailing garbage.
	for _, r := range c[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	_, err := colorful.Hex(c)
	return err == nil
}

func gradient(stopList string) (ColorFunc, error) {
	parts := strings.Split(stopList, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: gradient needs at least two stops, got %q", ErrInvalidColor, stopList)
	}
	stops := make([]colorful.Color, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if !ValidColor(p) {
			return nil, fmt.Errorf("%w: gradient stop %q", ErrInvalidColor, p)
		}
		c, _ := colorful.Hex(p)
		stops = append(stops, c)
	}
	return func(p Position) string {
		if p.Length <= 1 {
			return stops[0].Hex()
		}
		t := float64(p.Index) / float64(p.Length-1) * float64(len(stops)-1)
		seg := int(t)
		if seg >= len(stops)-1 {
			return stops[len(stops)-1].Hex()
		}
		if t == float64(seg) {
			return stops[seg].Hex()
		}
		return stops[seg].BlendLab(stops[seg+1], t-float64(seg)).Clamped().Hex()
	}, nil
}

// Colorize applies fn to every code point of text.
func Colorize(text string, fn ColorFunc) *ColoredString {
	runes := []rune(text)
	wordIdx, wordCount := wordPositions(runes)

	out := &ColoredString{chars: make([]ColoredChar, 0, len(runes))}
	for ix, r := range runes {
		color := fn(Position{
			Char:      r,
			Index:     ix,
			Length:    len(runes),
			WordIndex: wordIdx[ix],
			WordCount: wordCount,
		})
		out.Append(ColoredChar{Char: r, Color: color})
	}
	return out
}

// Render colorizes text with the named scheme and returns the markup.
func Render(text, scheme string) (string, error) {
	fn, err := Lookup(scheme)
	if err != nil {
		return "", err
	}
	return Colorize(text, fn).String(), nil
}

// isFieldSep reports whether r separates words: Unicode white space and the
// ASCII information separators FS, GS, RS and US.
func isFieldSep(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// wordPositions computes, for every index, the word index of the text before it,
// and the word count of the whole text. A word count is the number of
// whitespace-separated fields of the text with "." appended, so a text ending
// in whitespace (or an empty one) counts one extra word. The word index is
// that count for the prefix, minus one, floored at zero.
func wordPositions(runes []rune) ([]int, int) {
	idx := make([]int, len(runes))
	fields := 0
	lastSpace := true
	for i, r := range runes {
		n := fields
		if lastSpace {
			n++
		}
		idx[i] = max(n-1, 0)

		isSpace := isFieldSep(r)
		if !isSpace && lastSpace {
			fields++
		}
		lastSpace = isSpace
	}
	total := fields
	if lastSpace {
		total++
	}
	return idx, total
}
