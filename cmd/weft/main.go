// Command weft evaluates and checks interpolated configuration files.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "weft",
		Usage: "evaluate and check interpolated configuration values",
		Commands: []*cli.Command{
			resolveCommand(),
			checkCommand(),
			replCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "weft: %v\n", err)
		os.Exit(1)
	}
}
