package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hashmap-kz/colorclip/config"
	"github.com/hashmap-kz/colorclip/internal/colorize"
	"github.com/hashmap-kz/colorclip/internal/isolation"
	"github.com/hashmap-kz/colorclip/internal/logger"
	"github.com/hashmap-kz/colorclip/internal/opt/shared/x/strx"
	"github.com/hashmap-kz/colorclip/internal/version"
	"github.com/urfave/cli/v3"
)

func App() *cli.Command {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Usage:   "Path to config file",
		Aliases: []string{"c"},
		Sources: cli.EnvVars("COLORCLIP_CONFIG_PATH"),
	}

	app := &cli.Command{
		Name:    "colorclip",
		Usage:   "Colorize text into chat markup and put it on the clipboard",
		Version: version.Version,
		Commands: []*cli.Command{
			{
				Name:      "colorize",
				Usage:     "Read text, colorize it and write the markup to the clipboard",
				ArgsUsage: "[COLOR]",

				Description: strx.HeredocTrim(`
				COLOR is a scheme name (see 'colorclip schemes'), a hex color like '#5BCEFA'
				or 'gradient:#from,#to'. It may be given as the only argument or with --color.

				With isolation enabled the text is rendered by a disposable helper
				(isolation.command) and the result is verified before it reaches the clipboard.
				`),

				Flags: colorizeFlags(configFlag),
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() > 1 {
						return fmt.Errorf("usage: %s colorize [COLOR]", c.Root().Name)
					}
					cfg, err := loadConfig(ctx, c)
					if err != nil {
						return err
					}
					return RunColorize(ctx, &ColorizeOpts{
						Cfg:    cfg,
						Print:  c.Bool("print"),
						Stdin:  os.Stdin,
						Stdout: os.Stdout,
						Log:    slog.Default(),
					})
				},
			},
			{
				Name:  "render",
				Usage: "Helper mode: read a JSON request on stdin, write markup to stdout",

				Description: strx.HeredocTrim(`
				This is the untrusted side of isolation. It is meant to run inside a disposable
				context, started by 'colorize' through isolation.command. It reads no config.
				`),

				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-input",
						Usage: "Maximum request size in bytes",
						Value: isolation.DefaultMaxInput,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					logger.Init(&logger.Opts{Level: "warn"})
					return isolation.ServeHelper(ctx, os.Stdin, os.Stdout, c.Int("max-input"))
				},
			},
			{
				Name:  "schemes",
				Usage: "List the built-in color schemes",
				Action: func(_ context.Context, c *cli.Command) error {
					for _, name := range colorize.Names() {
						if _, err := fmt.Fprintln(c.Root().Writer, name); err != nil {
							return err
						}
					}
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Validate the config file without running the application",
				Flags: []cli.Flag{
					configFlag,
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					if _, err := loadConfig(ctx, c); err != nil {
						return err
					}
					_, err := fmt.Fprintln(c.Root().Writer, "Configuration is valid.")
					return err
				},
			},
		},
	}

	return app
}

// colorizeFlags mirror config keys; each falls back to the env var envconfig reads
// for the same key.
func colorizeFlags(configFlag cli.Flag) []cli.Flag {
	return []cli.Flag{
		configFlag,
		&cli.StringFlag{
			Name:    "color",
			Usage:   "Color scheme",
			Aliases: []string{"C"},
			Sources: cli.EnvVars(config.EnvPrefix + "COLOR_SCHEME"),
		},
		&cli.StringFlag{
			Name:    "input",
			Usage:   "Input source: clipboard/stdin/file",
			Sources: cli.EnvVars(config.EnvPrefix + "INPUT_SOURCE"),
		},
		&cli.StringFlag{
			Name:    "file",
			Usage:   "Input file when --input=file",
			Sources: cli.EnvVars(config.EnvPrefix + "INPUT_PATH"),
		},
		&cli.BoolFlag{
			Name:    "isolate",
			Usage:   "Render in the isolated helper (overrides isolation.enable)",
			Sources: cli.EnvVars(config.EnvPrefix + "ISOLATION_ENABLE"),
		},
		&cli.BoolFlag{
			Name:  "print",
			Usage: "Print the markup to stdout instead of the clipboard",
		},
	}
}

// loadConfig reads the config file (-c or $COLORCLIP_CONFIG_PATH) or, without
// one, the environment. Command line flags win over both.
func loadConfig(ctx context.Context, c *cli.Command) (*config.Config, error) {
	configPath := c.String("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadEnv(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	applyFlags(cfg, c)

	l := logger.Init(&logger.Opts{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	})
	l.Debug("starting with configuration",
		slog.String("path", filepath.ToSlash(configPath)),
		slog.String("config", cfg.String()),
	)
	return cfg, nil
}

func applyFlags(cfg *config.Config, c *cli.Command) {
	if c.Args().Len() == 1 {
		cfg.Color.Scheme = c.Args().First()
	}
	if c.IsSet("color") {
		cfg.Color.Scheme = c.String("color")
	}
	if c.IsSet("input") {
		cfg.Input.Source = c.String("input")
	}
	if c.IsSet("file") {
		cfg.Input.Path = c.String("file")
	}
	if c.IsSet("isolate") {
		cfg.Isolation.Enable = c.Bool("isolate")
	}
}
