package clipboard

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	atotto "github.com/atotto/clipboard"
	"github.com/hashmap-kz/colorclip/internal/opt/shared/x/cmdx"
)

var (
	ErrUnsupported = errors.New("clipboard operation not supported")
	ErrNoTool      = errors.New("no clipboard tool found")
)

const (
	BackendSystem  = "system"
	BackendCommand = "command"
	BackendOSC52   = "osc52"
)

// Clipboard reads and writes plain text.
type Clipboard interface {
	ReadText(ctx context.Context) (string, error)
	WriteText(ctx context.Context, text string) error
}

type Opts struct {
	Backend      string
	ReadCommand  []string
	WriteCommand []string
	Timeout      time.Duration
}

func New(opts *Opts) (Clipboard, error) {
	switch opts.Backend {
	case "", BackendSystem:
		return System{}, nil
	case BackendCommand:
		return NewCommand(opts.ReadCommand, opts.WriteCommand, opts.Timeout), nil
	case BackendOSC52:
		return NewOSC52(os.Stdout), nil
	default:
		return nil, fmt.Errorf("unknown clipboard backend: %q", opts.Backend)
	}
}

// System uses the platform clipboard through github.com/atotto/clipboard.
type System struct{}

func (System) ReadText(_ context.Context) (string, error) {
	if atotto.Unsupported {
		return "", ErrUnsupported
	}
	return atotto.ReadAll()
}

func (System) WriteText(_ context.Context, text string) error {
	if atotto.Unsupported {
		return ErrUnsupported
	}
	return atotto.WriteAll(text)
}

// Command pipes text through external tools. Empty commands are detected from PATH.
type Command struct {
	read    []string
	write   []string
	timeout time.Duration
}

type candidate struct {
	read  []string
	write []string
}

var candidates = []candidate{
	{read: []string{"wl-paste", "--no-newline"}, write: []string{"wl-copy"}},
	{read: []string{"xclip", "-selection", "clipboard", "-o"}, write: []string{"xclip", "-selection", "clipboard"}},
	{read: []string{"xsel", "--clipboard", "--output"}, write: []string{"xsel", "--clipboard", "--input"}},
	{read: []string{"pbpaste"}, write: []string{"pbcopy"}},
}

func NewCommand(read, write []string, timeout time.Duration) *Command {
	return &Command{read: read, write: write, timeout: timeout}
}

func detect(pick func(candidate) []string) ([]string, error) {
	for _, c := range candidates {
		argv := pick(c)
		if _, ok := cmdx.Which(argv[0]); ok {
			return argv, nil
		}
	}
	return nil, fmt.Errorf("%w on %s", ErrNoTool, runtime.GOOS)
}

func (c *Command) ReadText(ctx context.Context) (string, error) {
	argv := c.read
	if len(argv) == 0 {
		var err error
		if argv, err = detect(func(c candidate) []string { return c.read }); err != nil {
			return "", err
		}
	}
	res, err := cmdx.Run(ctx, &cmdx.Opts{Argv: argv, Timeout: c.timeout})
	if err != nil {
		return "", err
	}
	return string(res.Stdout), nil
}

func (c *Command) WriteText(ctx context.Context, text string) error {
	argv := c.write
	if len(argv) == 0 {
		var err error
		if argv, err = detect(func(c candidate) []string { return c.write }); err != nil {
			return err
		}
	}
	_, err := cmdx.Run(ctx, &cmdx.Opts{
		Argv:    argv,
		Stdin:   strings.NewReader(text),
		Timeout: c.timeout,
	})
	return err
}

// OSC52 writes through the terminal escape sequence. It cannot read.
type OSC52 struct {
	w io.Writer
}

func NewOSC52(w io.Writer) *OSC52 {
	return &OSC52{w: w}
}

func (o *OSC52) ReadText(_ context.Context) (string, error) {
	return "", ErrUnsupported
}

func (o *OSC52) WriteText(_ context.Context, text string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	_, err := fmt.Fprintf(o.w, "\u001b]52;c;%s\u0007", encoded)
	return err
}

// Memory is an in-process clipboard that records every write.
type Memory struct {
	mu      sync.Mutex
	text    string
	Writes  []string
	ReadErr error
}

func (m *Memory) ReadText(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return "", m.ReadErr
	}
	return m.text, nil
}

func (m *Memory) WriteText(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.Writes = append(m.Writes, text)
	return nil
}

func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}
