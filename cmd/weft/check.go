package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/boyter/gocodewalker"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/weftworks/weft"
	"github.com/weftworks/weft/lint"
)

// Check command errors.
var ErrDiagnostics = errors.New("config files contain errors")

var (
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	pathStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Check interpolations in a tree of config files",
		ArgsUsage: "[files or directories...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "suppress per-file output, only set the exit code",
			},
		},
		Action: runCheck,
	}
}

func runCheck(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		args = []string{"."}
	}

	// Project config narrows which files are checked; absence is fine.
	cfg := &weft.Config{}
	if loaded, _, err := weft.LoadConfig("."); err == nil {
		cfg = loaded
	}

	files, err := collectConfigFiles(args)
	if err != nil {
		return err
	}

	colored := isatty.IsTerminal(os.Stdout.Fd())

	var total int

	for _, path := range files {
		if !cfg.Check.Matches(path) {
			continue
		}

		diags, err := lint.File(path)
		if err != nil {
			return err
		}

		total += len(diags)

		if cmd.Bool("quiet") {
			continue
		}

		for _, d := range diags {
			loc := fmt.Sprintf("%s:%d:%d", d.Path, d.Line, d.Column)
			if colored {
				fmt.Printf("%s: %s %s\n", pathStyle.Render(loc), errStyle.Render("error:"), d.Message)
			} else {
				fmt.Printf("%s: error: %s\n", loc, d.Message)
			}
		}
	}

	if total > 0 {
		return fmt.Errorf("%w: %d problem(s)", ErrDiagnostics, total)
	}

	return nil
}

// collectConfigFiles expands directories into the YAML files they
// contain, honoring ignore files the way source tools do.
func collectConfigFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			files = append(files, arg)

			continue
		}

		queue := make(chan *gocodewalker.File, 100)

		walker := gocodewalker.NewFileWalker(arg, queue)
		walker.AllowListExtensions = append(walker.AllowListExtensions, "yaml", "yml")

		go func() { _ = walker.Start() }()

		for f := range queue {
			if strings.HasSuffix(f.Location, ".yaml") || strings.HasSuffix(f.Location, ".yml") {
				files = append(files, f.Location)
			}
		}
	}

	return files, nil
}
