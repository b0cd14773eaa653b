package cli

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownCommand команда не поддерживается
var ErrUnknownCommand = errors.New("unknown command")

// Run executes command with its arguments.
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "join":
		return c.runJoin(ctx, args)
	case "export":
		return c.runExport(ctx, args)
	case "discover":
		return c.runDiscover(ctx, args)
	case "status":
		return c.runStatus(ctx)
	case "help":
		c.PrintUsage()
		return nil
	default:
		c.PrintUsage()
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// requireBoard проверяет, что для команды задана доска
func (c *Cli) requireBoard() error {
	if c.cfg.BoardID == "" {
		return fmt.Errorf("board is required: use --board or board_id in the config")
	}
	return nil
}
