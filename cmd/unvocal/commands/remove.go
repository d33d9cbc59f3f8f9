package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"unvocal/internal/monitor"
)

// RemoveAction submits one URL and follows it until it finishes.
func RemoveAction(ctx context.Context, cmd *cli.Command) error {
	url := cmd.Args().First()
	if url == "" {
		return fmt.Errorf("a YouTube URL is required")
	}

	app, err := NewAppContext(cmd)
	if err != nil {
		return err
	}

	state, err := app.NewMonitor().Run(ctx, url)
	if err != nil {
		return ignoreCanceled(err)
	}
	if state.MessageClass == monitor.ClassError {
		return cli.Exit("", 1)
	}

	out := cmd.String("download")
	if out == "" || !state.HasDownload() {
		return nil
	}
	return download(ctx, app, state, out)
}

// download saves the published file to out. A directory target keeps the published name.
func download(ctx context.Context, app *AppContext, state monitor.UIState, out string) error {
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		out = filepath.Join(out, state.DownloadName)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	n, err := app.Client.Download(ctx, state.DownloadURL, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return err
	}

	fmt.Printf("Saved %s (%d bytes)\n", out, n)
	return nil
}

// WatchAction reads URLs from stdin, one per line, and submits each of them.
// Lines arriving while a job is in flight are refused, not queued.
func WatchAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(cmd)
	if err != nil {
		return err
	}
	m := app.NewMonitor()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		url := strings.TrimSpace(scanner.Text())
		if url == "" {
			continue
		}
		if err := m.Submit(ctx, url); err != nil && !errors.Is(err, monitor.ErrBusy) {
			return ignoreCanceled(err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	return ignoreCanceled(m.Wait(ctx))
}

// ignoreCanceled treats an interrupt (Ctrl-C) as a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
