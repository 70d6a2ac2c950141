package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/shopspring/decimal"

	"github.com/zombor/spend-tracker/internal/logging"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// Amounts are rendered as JSON numbers for the presentation layer
	decimal.MarshalJSONWithoutQuotes = true

	cfg := &config{}
	root := newRootCommand(cfg, os.Stdout)

	err := root.Parse(os.Args[1:], ff.WithEnvVarPrefix("SPEND_TRACKER"))
	switch {
	case errors.Is(err, ff.ErrHelp):
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(*cfg.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.JSON = *cfg.logJSON
	logging.Setup(logCfg)

	if err := root.Run(context.Background()); err != nil {
		if errors.Is(err, ff.ErrNoExec) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
			os.Exit(1)
		}
		slog.Error("Command failed", "command", root.GetSelected().Name, "error", err)
		os.Exit(1)
	}
}
