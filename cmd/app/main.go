package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/subwiki/internal"
	"github.com/starford/subwiki/internal/markdown"
	pkgconfig "github.com/starford/subwiki/pkg/config"
)

func options(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(configPath, "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithRoot(cmd.String("root")),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, opts...); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// render compiles one Markdown file (or stdin for "-") to HTML on stdout.
func render(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("render: file argument is required")
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	opts := []markdown.Option{markdown.WithTableClass(cmd.String("table-class"))}
	if cmd.Bool("safe") {
		opts = append(opts, markdown.WithSafeHTML())
	}
	_, err = fmt.Fprintln(os.Stdout, markdown.New(opts...).Compile(string(data)))
	return err
}

func main() {
	cmd := &cli.Command{
		Name:   "subwiki",
		Usage:  "Personal wiki of Markdown notes with [[links]] and nested sub-wikis",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Wiki root directory (defaults to the last opened one)",
				Sources: cli.EnvVars("WIKI_ROOT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the wiki over HTTP",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the wiki as MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:      "render",
				Usage:     "Compile a Markdown file to HTML",
				ArgsUsage: "<file|->",
				Action:    render,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "table-class",
						Usage: "Class attribute added to tables",
						Value: markdown.DefaultTableClass,
					},
					&cli.BoolFlag{
						Name:  "safe",
						Usage: "Drop raw HTML from the output",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
