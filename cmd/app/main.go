package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/iteam-company/blockpress/internal"
	pkgconfig "github.com/iteam-company/blockpress/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func convert(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("convert: file argument is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := os.Stdout
	if name := cmd.String("out"); name != "" && name != "-" {
		f, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("convert: %w", err)
		}
		defer f.Close()
		out = f
	}

	return internal.ConvertFile(ctx, path, out, internal.ConvertOptions{
		Format:   cmd.String("format"),
		Envelope: cmd.String("envelope"),
	}, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:   "blockpress",
		Usage:  "Convert Markdown and HTML documents into typed block documents",
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
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and keep the content directory converted",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the conversion tools over MCP stdio",
				Action: mcp,
			},
			{
				Name:      "convert",
				Usage:     "Convert one file and print the JSON result",
				ArgsUsage: "<file>",
				Action:    convert,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "markdown or html (default: from the file extension)",
					},
					&cli.StringFlag{
						Name:  "envelope",
						Usage: "Output shape: empty for the block document, article for the CMS envelope",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Write the result to a file instead of stdout",
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
