package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

const defaultBrowseTimeout = 2 * time.Second

func (c *Cli) runDiscover(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("discover", pflag.ContinueOnError)
	fs.SetOutput(c.io)
	timeout := fs.Duration("timeout", defaultBrowseTimeout, "How long to wait for answers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	relays, err := c.browse(ctx, *timeout, c.logger)
	if err != nil {
		return fmt.Errorf("failed to browse relays: %w", err)
	}

	if len(relays) == 0 {
		c.io.Println("No relays found.")
		return nil
	}

	c.io.Printf("Found %d relay(s):\n\n", len(relays))
	for _, r := range relays {
		version := r.Version
		if version == "" {
			version = "unknown"
		}
		c.io.Printf("  %-24s %-32s version %s\n", r.Instance, r.URL(), version)
	}
	return nil
}
