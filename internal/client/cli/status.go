package cli

import (
	"context"
	"fmt"
	"time"
)

const statusTimeout = 5 * time.Second

func (c *Cli) runStatus(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	c.io.Println("=== Relay Status ===")
	c.io.Println()
	c.io.Printf("Server: %s\n", c.cfg.ServerURL)

	health, err := c.health(ctx, c.cfg.ServerURL, c.cfg.Token)
	if err != nil {
		c.io.Println("Status: unreachable")
		return fmt.Errorf("failed to check relay: %w", err)
	}

	c.io.Printf("Status: %s\n", health.Status)
	if health.Version != "" {
		c.io.Printf("Version: %s\n", health.Version)
	}
	if c.cfg.BoardID != "" {
		c.io.Printf("Board: %s\n", c.cfg.BoardID)
	}
	return nil
}
