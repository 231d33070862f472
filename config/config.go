package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/hashmap-kz/colorclip/internal/clipboard"
	"github.com/hashmap-kz/colorclip/internal/colorize"
	"github.com/hashmap-kz/colorclip/internal/input"
	"github.com/hashmap-kz/colorclip/internal/logger"
	"github.com/sethvargo/go-envconfig"
	"sigs.k8s.io/yaml"
)

const EnvPrefix = "COLORCLIP_"

type Config struct {
	Color     ColorConfig     `json:"color" env:", prefix=COLOR_"`
	Input     InputConfig     `json:"input" env:", prefix=INPUT_"`
	Clipboard ClipboardConfig `json:"clipboard" env:", prefix=CLIPBOARD_"`
	Isolation IsolationConfig `json:"isolation" env:", prefix=ISOLATION_"`
	Log       LogConfig       `json:"log" env:", prefix=LOG_"`
}

type ColorConfig struct {
	Scheme string `json:"scheme" env:"SCHEME, default=default"`
}

type InputConfig struct {
	Source   string `json:"source" env:"SOURCE, default=file"`
	Path     string `json:"path" env:"PATH, default=/var/run/qubes/qubes-clipboard.bin"`
	MaxBytes int64  `json:"max_input_bytes" env:"MAX_INPUT_BYTES, default=1048576"`
}

type ClipboardConfig struct {
	Backend         string   `json:"backend" env:"BACKEND, default=system"`
	ReadCommand     []string `json:"read_command,omitempty" env:"READ_COMMAND"`
	WriteCommand    []string `json:"write_command,omitempty" env:"WRITE_COMMAND"`
	PublishCommand  []string `json:"publish_command,omitempty" env:"PUBLISH_COMMAND"`
	RestorePrevious bool     `json:"restore_previous" env:"RESTORE_PREVIOUS"`
	Timeout         string   `json:"timeout" env:"TIMEOUT, default=10s"`

	TimeoutParsed time.Duration `json:"-"`
}

type IsolationConfig struct {
	Enable         bool     `json:"enable" env:"ENABLE"`
	Command        []string `json:"command,omitempty" env:"COMMAND, default=qvm-run,--dispvm,--pass-io,--no-gui,colorclip render"`
	Timeout        string   `json:"timeout" env:"TIMEOUT, default=60s"`
	MaxOutputBytes int64    `json:"max_output_bytes" env:"MAX_OUTPUT_BYTES"`

	TimeoutParsed time.Duration `json:"-"`
}

type LogConfig struct {
	Level     string `json:"level" env:"LEVEL, default=info"`
	Format    string `json:"format" env:"FORMAT, default=text"`
	AddSource bool   `json:"add_source" env:"ADD_SOURCE"`
}

// Defaults returns a config with every default applied and nothing else.
func Defaults() (*Config, error) {
	var c Config
	err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &c,
		Lookuper: envconfig.MapLookuper(map[string]string{}),
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a YAML file. ${COLORCLIP_*} placeholders are expanded first,
// keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}
	expanded := expandEnvsWithPrefix(string(data), EnvPrefix)
	if err := yaml.UnmarshalStrict([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv builds the config from COLORCLIP_* environment variables.
func LoadEnv(ctx context.Context) (*Config, error) {
	return loadEnv(ctx, envconfig.OsLookuper())
}

func loadEnv(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, l),
	})
	if err != nil {
		return nil, err
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envPlaceholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnvsWithPrefix(input, prefix string) string {
	return envPlaceholder.ReplaceAllStringFunc(input, func(m string) string {
		name := m[2 : len(m)-1]
		if !strings.HasPrefix(name, prefix) {
			return m
		}
		return os.Getenv(name)
	})
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// validate reports every problem at once and fills the *Parsed fields.
func validate(cfg *Config) error {
	var errs []error
	addErr := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	// color
	if _, err := colorize.Lookup(cfg.Color.Scheme); err != nil {
		addErr("color.scheme: %v", err)
	}

	// input
	if !oneOf(cfg.Input.Source, input.SourceClipboard, input.SourceStdin, input.SourceFile) {
		addErr("input.source must be one of [clipboard stdin file], got %q", cfg.Input.Source)
	}
	if cfg.Input.Source == input.SourceFile && strings.TrimSpace(cfg.Input.Path) == "" {
		addErr("input.path is required when input.source is file")
	}
	if cfg.Input.MaxBytes <= 0 {
		addErr("input.max_input_bytes must be > 0")
	}

	// clipboard
	if !oneOf(cfg.Clipboard.Backend, clipboard.BackendSystem, clipboard.BackendCommand, clipboard.BackendOSC52) {
		addErr("clipboard.backend must be one of [system command osc52], got %q", cfg.Clipboard.Backend)
	}
	if d, err := time.ParseDuration(cfg.Clipboard.Timeout); err != nil {
		addErr("clipboard.timeout cannot parse: %v", err)
	} else {
		cfg.Clipboard.TimeoutParsed = d
	}
	if cfg.Clipboard.RestorePrevious && len(cfg.Clipboard.PublishCommand) == 0 {
		addErr("clipboard.restore_previous requires clipboard.publish_command")
	}
	if cfg.Clipboard.Backend == clipboard.BackendOSC52 {
		if cfg.Input.Source == input.SourceClipboard {
			addErr("input.source clipboard cannot be used with the write-only osc52 backend")
		}
		if cfg.Clipboard.RestorePrevious {
			addErr("clipboard.restore_previous cannot be used with the write-only osc52 backend")
		}
	}

	// isolation
	if d, err := time.ParseDuration(cfg.Isolation.Timeout); err != nil {
		addErr("isolation.timeout cannot parse: %v", err)
	} else {
		cfg.Isolation.TimeoutParsed = d
	}
	if cfg.Isolation.Enable && len(cfg.Isolation.Command) == 0 {
		addErr("isolation.command is required when isolation is enabled")
	}
	if cfg.Isolation.MaxOutputBytes < 0 {
		addErr("isolation.max_output_bytes must be >= 0")
	}

	// log
	if _, ok := logger.ParseLevel(cfg.Log.Level); !ok {
		addErr("log.level must be one of [trace debug info warn error], got %q", cfg.Log.Level)
	}
	if !oneOf(strings.ToLower(cfg.Log.Format), "text", "json") {
		addErr("log.format must be one of [text json], got %q", cfg.Log.Format)
	}

	return errors.Join(errs...)
}

func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<cannot marshal config: %v>", err)
	}
	return string(data)
}
