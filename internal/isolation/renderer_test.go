package isolation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hashmap-kz/colorclip/internal/colorize"
	"github.com/hashmap-kz/colorclip/internal/logger"
	"github.com/hashmap-kz/colorclip/internal/opt/shared/x/cmdx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "COLORCLIP_TEST_HELPER_MODE"

// TestMain lets the test binary act as the helper process.
func TestMain(m *testing.M) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		os.Exit(m.Run())
	}
	os.Exit(fakeHelper(mode))
}

func fakeHelper(mode string) int {
	switch mode {
	case "honest":
		if err := ServeHelper(context.Background(), os.Stdin, os.Stdout, 0); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	case "inject":
		_, _ = io.Copy(io.Discard, os.Stdin)
		fmt.Print("<img src=x onerror=alert(1)>")
	case "tamper":
		var req Request
		_ = json.NewDecoder(os.Stdin).Decode(&req)
		markup, _ := colorize.Render(req.Text+" pwned", req.Color)
		fmt.Print(markup)
	case "flood":
		_, _ = io.Copy(io.Discard, os.Stdin)
		fmt.Print(strings.Repeat("A", 1<<20))
	case "hang":
		time.Sleep(10 * time.Second)
	case "fail":
		fmt.Fprint(os.Stderr, "\x1b[31mboom\x1b[0m")
		return 2
	}
	return 0
}

func helperCommand(t *testing.T, mode string) []string {
	t.Helper()
	t.Setenv(helperEnv, mode)
	return []string{os.Args[0], "-test.run=^$"}
}

func newTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestIsolatedRenderer(t *testing.T) {
	text := `say <b>"hi"</b> & bye`

	t.Run("honest helper", func(t *testing.T) {
		r := NewIsolatedRenderer(&IsolatedOpts{Command: helperCommand(t, "honest")}, newTestLogger(t))
		got, err := r.Render(context.Background(), text, "trans")
		require.NoError(t, err)

		want, _ := colorize.Render(text, "trans")
		assert.Equal(t, want, got)
	})

	t.Run("injected markup is rejected", func(t *testing.T) {
		r := NewIsolatedRenderer(&IsolatedOpts{Command: helperCommand(t, "inject")}, newTestLogger(t))
		_, err := r.Render(context.Background(), text, "trans")
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("tampered text is rejected", func(t *testing.T) {
		r := NewIsolatedRenderer(&IsolatedOpts{Command: helperCommand(t, "tamper")}, newTestLogger(t))
		_, err := r.Render(context.Background(), text, "nb")
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("oversized output", func(t *testing.T) {
		r := NewIsolatedRenderer(&IsolatedOpts{Command: helperCommand(t, "flood")}, newTestLogger(t))
		_, err := r.Render(context.Background(), "x", "trans")
		assert.ErrorIs(t, err, cmdx.ErrOutputLimit)
	})

	t.Run("timeout", func(t *testing.T) {
		r := NewIsolatedRenderer(&IsolatedOpts{
			Command: helperCommand(t, "hang"),
			Timeout: 200 * time.Millisecond,
		}, newTestLogger(t))
		_, err := r.Render(context.Background(), "x", "trans")
		assert.ErrorIs(t, err, cmdx.ErrTimeout)
	})

	t.Run("failing helper", func(t *testing.T) {
		var logs bytes.Buffer
		l := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
		r := NewIsolatedRenderer(&IsolatedOpts{Command: helperCommand(t, "fail")}, l)
		_, err := r.Render(context.Background(), "x", "trans")
		assert.ErrorIs(t, err, cmdx.ErrExitStatus)
		assert.Contains(t, logs.String(), "boom")
		assert.NotContains(t, logs.String(), "\x1b")
	})

	t.Run("trace logs the verdict", func(t *testing.T) {
		var logs bytes.Buffer
		l := logger.New(&logger.Opts{Level: "trace", Writer: &logs})
		r := NewIsolatedRenderer(&IsolatedOpts{Command: helperCommand(t, "honest")}, l)
		_, err := r.Render(context.Background(), text, "trans")
		require.NoError(t, err)
		assert.Contains(t, logs.String(), "level=TRACE")
		assert.Contains(t, logs.String(), "helper output accepted")
	})

	t.Run("unknown scheme never spawns", func(t *testing.T) {
		r := NewIsolatedRenderer(&IsolatedOpts{Command: []string{"definitely-not-a-binary-xyz"}}, newTestLogger(t))
		_, err := r.Render(context.Background(), "x", "rainbow")
		assert.ErrorIs(t, err, colorize.ErrUnknownScheme)
	})
}

func TestIsolatedRenderer_OutputLimit(t *testing.T) {
	r := NewIsolatedRenderer(&IsolatedOpts{}, nil)
	assert.Equal(t, int64(3*bytesPerRune+outputSlack), r.outputLimit("a✓b"))

	r = NewIsolatedRenderer(&IsolatedOpts{MaxOutputBytes: 10}, nil)
	assert.Equal(t, int64(10), r.outputLimit("anything"))
}

func TestServeHelper(t *testing.T) {
	t.Run("renders request", func(t *testing.T) {
		var out bytes.Buffer
		err := ServeHelper(context.Background(), strings.NewReader(`{"color":"none","text":"<x>"}`), &out, 0)
		require.NoError(t, err)
		assert.Equal(t, "&lt;x&gt;", out.String())
	})

	t.Run("unknown field", func(t *testing.T) {
		err := ServeHelper(context.Background(), strings.NewReader(`{"color":"none","text":"x","cmd":"rm"}`), io.Discard, 0)
		assert.Error(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		err := ServeHelper(context.Background(), strings.NewReader(`{"color":"none","text":"xxxxxxxx"}`), io.Discard, 8)
		assert.ErrorIs(t, err, ErrRequestTooLarge)
	})

	t.Run("bad scheme", func(t *testing.T) {
		err := ServeHelper(context.Background(), strings.NewReader(`{"color":"#zzz","text":"x"}`), io.Discard, 0)
		assert.ErrorIs(t, err, colorize.ErrInvalidColor)
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		var out bytes.Buffer
		err := ServeHelper(context.Background(), strings.NewReader("{\"color\":\"none\",\"text\":\"a\xffb\"}"), &out, 0)
		assert.ErrorIs(t, err, ErrMalformedRequest)
		assert.Empty(t, out.String())
	})

	t.Run("trailing data", func(t *testing.T) {
		var out bytes.Buffer
		err := ServeHelper(context.Background(), strings.NewReader(`{"color":"none","text":"x"} trailing garbage`), &out, 0)
		assert.ErrorIs(t, err, ErrMalformedRequest)
		assert.Empty(t, out.String())
	})

	t.Run("second request", func(t *testing.T) {
		err := ServeHelper(context.Background(), strings.NewReader(`{"color":"none","text":"x"}{"color":"none","text":"y"}`), io.Discard, 0)
		assert.ErrorIs(t, err, ErrMalformedRequest)
	})

	t.Run("trailing whitespace", func(t *testing.T) {
		var out bytes.Buffer
		err := ServeHelper(context.Background(), strings.NewReader("{\"color\":\"none\",\"text\":\"x\"}\n"), &out, 0)
		require.NoError(t, err)
		assert.Equal(t, "x", out.String())
	})

	t.Run("not json", func(t *testing.T) {
		err := ServeHelper(context.Background(), strings.NewReader("hello"), io.Discard, 0)
		assert.ErrorIs(t, err, ErrMalformedRequest)
	})
}

func TestLocalRenderer(t *testing.T) {
	got, err := LocalRenderer{}.Render(context.Background(), "a", "#123456")
	require.NoError(t, err)
	assert.Equal(t, "<span data-mx-color='#123456' style='color: #123456;'>a</span>", got)
}
