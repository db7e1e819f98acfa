// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"os"

	"codeberg.org/procclean/reviewgate/internal/config"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newCommand builds the command tree. Without a subcommand the server
// starts.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:     "reviewgate",
		Usage:    "Collect customer reviews behind single-use access codes",
		Version:  fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:    config.Flags(),
		Action:   serve,
		Commands: commands(),
	}
}
