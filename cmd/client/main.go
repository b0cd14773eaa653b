package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/iudanet/boardsync/internal/client/cli"
	"github.com/iudanet/boardsync/internal/client/iocli"
	"github.com/iudanet/boardsync/internal/config"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Глобальные флаги
	showVersion := pflag.Bool("version", false, "Show version information")
	configPath := pflag.String("config", "", "YAML config file (or BOARDSYNC_CONFIG)")
	serverURL := pflag.String("server", "", "Relay URL")
	boardID := pflag.String("board", "", "Board to open")
	name := pflag.String("name", "", "Name shown to other participants")
	color := pflag.String("color", "", "Cursor color")
	token := pflag.String("token", "", "Access token (not recommended, use env var or file)")
	tokenFile := pflag.String("token-file", "", "Path to file containing the access token")
	verbose := pflag.Bool("verbose", false, "Debug logging")

	// Флаги команд разбираются самими командами
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	stdio := iocli.NewStdio()

	cfg, err := config.LoadClient(config.Path(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *boardID != "" {
		cfg.BoardID = *boardID
	}
	if *name != "" {
		cfg.Name = *name
	}
	if *color != "" {
		cfg.Color = *color
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	c := cli.New(stdio, cfg, cli.Tokens{FromFile: *tokenFile, FromArgs: *token}, logger)

	args := pflag.Args()
	if len(args) == 0 {
		c.PrintUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("Boardsync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
