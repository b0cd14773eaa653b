package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/iudanet/boardsync/internal/client/export"
)

func (c *Cli) runExport(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	fs.SetOutput(c.io)
	out := fs.String("out", c.cfg.ExportPath, "PDF file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.requireBoard(); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("output path is required")
	}

	token, err := c.getToken()
	if err != nil {
		return err
	}

	s, cleanup, err := c.connect(ctx, c.cfg, token, c.logger)
	if err != nil {
		return fmt.Errorf("failed to open board: %w", err)
	}
	defer cleanup()
	defer c.closeSession(s)

	name := s.Name()
	if name == "" {
		name = s.BoardID()
	}
	board := export.Board{
		Name:    name,
		Strokes: s.Strokes.Visible(),
		Notes:   s.Notes.List(),
		Shapes:  s.Shapes.List(),
		Texts:   s.Texts.List(),
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := export.PDF(f, board, export.DefaultOptions()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to render board: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	c.io.Printf("Exported board %s to %s\n", name, *out)
	return nil
}
