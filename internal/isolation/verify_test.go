package isolation

import (
	"testing"

	"github.com/hashmap-kz/colorclip/internal/colorize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_AcceptsCanonical(t *testing.T) {
	inputs := []string{
		"",
		"hello world",
		`<script>alert("x")</script> & 'quotes'`,
		"crlf\r\nline\rend\n",
		"unicode ✓ héllo 🌈",
	}
	for _, scheme := range []string{"default", "none", "trans", "nb-words", "trans3-loop", "#abc"} {
		for _, in := range inputs {
			markup, err := colorize.Render(in, scheme)
			require.NoError(t, err)

			got, err := Verify(markup, in)
			require.NoError(t, err, "scheme=%s input=%q", scheme, in)
			assert.Equal(t, markup, got)
		}
	}
}

func TestVerify_Rejects(t *testing.T) {
	ok := "<span data-mx-color='#fff' style='color: #fff;'>hi</span>"

	tests := []struct {
		name   string
		markup string
		text   string
	}{
		{"different text", ok, "ho"},
		{"script tag", "<script>x</script>", "x"},
		{"img tag", "<img src=x onerror=alert(1)>", ""},
		{"nested span", "<span data-mx-color='#fff' style='color: #fff;'><span data-mx-color='#fff' style='color: #fff;'>hi</span></span>", "hi"},
		{"extra attribute", "<span data-mx-color='#fff' style='color: #fff;' onclick='x'>hi</span>", "hi"},
		{"missing style", "<span data-mx-color='#fff' title='x'>hi</span>", "hi"},
		{"style mismatch", "<span data-mx-color='#fff' style='color: #000;'>hi</span>", "hi"},
		{"style injection", "<span data-mx-color='#fff' style='color: #fff; background: url(x);'>hi</span>", "hi"},
		{"bad color", "<span data-mx-color='red' style='color: red;'>hi</span>", "hi"},
		{"unclosed span", "<span data-mx-color='#fff' style='color: #fff;'>hi", "hi"},
		{"stray end tag", "hi</span>", "hi"},
		{"comment", "<!-- x -->hi", "hi"},
		{"doctype", "<!DOCTYPE html>hi", "hi"},
		{"self closing", "<span data-mx-color='#fff' style='color: #fff;'/>hi", "hi"},
		{"unescaped ampersand", "a&b", "a&b"},
		{"numeric entity instead of named", "a&#38;b", "a&b"},
		{"empty span", "<span data-mx-color='#fff' style='color: #fff;'></span>hi", "hi"},
		{"split span of one color", "<span data-mx-color='#fff' style='color: #fff;'>h</span><span data-mx-color='#fff' style='color: #fff;'>i</span>", "hi"},
		{"double quoted attributes", `<span data-mx-color="#fff" style="color: #fff;">hi</span>`, "hi"},
		{"invalid utf8", "hi\xff", "hi\xff"},
		{"trailing newline", ok + "\n", "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Verify(tt.markup, tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRejected)
		})
	}
}
