package main

import (
	"context"
	"errors"
	"fmt"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/weftworks/weft"
	"github.com/weftworks/weft/confmap"
)

// Resolve command errors.
var ErrNoKeys = errors.New("no keys given")

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Evaluate interpolated keys from a config file",
		ArgsUsage: "<key>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "config file to load",
				Required: true,
				Sources:  cli.EnvVars("WEFT_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "lenient",
				Usage: "substitute placeholders for missing or unresolvable values",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "verbose output",
			},
		},
		Action: runResolve,
	}
}

func runResolve(_ context.Context, cmd *cli.Command) error {
	keys := cmd.Args().Slice()
	if len(keys) == 0 {
		return ErrNoKeys
	}

	logger := zap.NewNop()
	if cmd.Bool("verbose") {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}

		logger = l
	}
	defer func() { _ = logger.Sync() }()

	container, err := loadContainer(cmd.String("file"))
	if err != nil {
		return err
	}

	logger.Info("loaded config", zap.String("file", cmd.String("file")))

	ctx := weft.StrictContext()
	if cmd.Bool("lenient") {
		ctx.FailOnMissing = false
		ctx.FailOnResolutionFailure = false
	}

	resolvers := weft.Default()

	for _, key := range keys {
		v, err := container.Resolve(key, resolvers, ctx)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", key, err)
		}

		logger.Debug("resolved", zap.String("key", key), zap.String("kind", v.Kind().String()))

		if len(keys) == 1 {
			fmt.Println(v)
		} else {
			fmt.Printf("%s: %s\n", key, v)
		}
	}

	return nil
}

// loadContainer reads a YAML config file through koanf and builds the
// container the evaluator works against.
func loadContainer(path string) (*confmap.Container, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	return confmap.FromMap(k.Raw())
}
