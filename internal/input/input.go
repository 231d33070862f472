// Package input reads the text to be colorized.
package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/hashmap-kz/colorclip/internal/clipboard"
)

const (
	SourceClipboard = "clipboard"
	SourceStdin     = "stdin"
	SourceFile      = "file"

	// DefaultPath is where Qubes keeps the global clipboard contents.
	DefaultPath     = "/var/run/qubes/qubes-clipboard.bin"
	DefaultMaxBytes = 1 << 20
)

var ErrInvalidInput = errors.New("invalid input")

type Opts struct {
	Source   string
	Path     string
	MaxBytes int64

	Clipboard clipboard.Clipboard
	Stdin     io.Reader
}

func Read(ctx context.Context, opts *Opts) (string, error) {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	var data []byte
	var err error
	switch opts.Source {
	case SourceClipboard:
		if opts.Clipboard == nil {
			return "", fmt.Errorf("%w: no clipboard configured", ErrInvalidInput)
		}
		var text string
		text, err = opts.Clipboard.ReadText(ctx)
		data = []byte(text)
	case SourceStdin:
		r := opts.Stdin
		if r == nil {
			r = os.Stdin
		}
		data, err = readLimited(r, maxBytes)
	case "", SourceFile:
		path := opts.Path
		if path == "" {
			path = DefaultPath
		}
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		data, err = readLimited(f, maxBytes)
	default:
		return "", fmt.Errorf("%w: unknown source %q", ErrInvalidInput, opts.Source)
	}
	if err != nil {
		return "", err
	}

	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrInvalidInput, maxBytes)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid utf-8", ErrInvalidInput)
	}
	return string(data), nil
}

// readLimited reads up to limit+1 bytes so the caller can tell an oversized input.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit+1))
}
