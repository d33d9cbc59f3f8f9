package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"unvocal/internal/client"
	"unvocal/internal/config"
	"unvocal/internal/monitor"
)

// AppContext holds what every client command needs.
type AppContext struct {
	Config *config.Config
	Client *client.Client
	Logger *slog.Logger
}

// NewAppContext loads the configuration and builds the backend client.
// A --server flag overrides UNVOCAL_SERVER_URL.
func NewAppContext(cmd *cli.Command) (*AppContext, error) {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if server := cmd.String("server"); server != "" {
		cfg.Client.ServerURL = server
	}

	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return &AppContext{
		Config: cfg,
		Client: client.New(cfg.Client.ServerURL, cfg.Client.RequestTimeout),
		Logger: logger,
	}, nil
}

// NewMonitor creates a job monitor drawing to stdout.
func (a *AppContext) NewMonitor() *monitor.Monitor {
	return monitor.New(a.Client, monitor.NewTerminalRenderer(os.Stdout),
		monitor.WithPollInterval(a.Config.Client.PollInterval),
		monitor.WithPollTimeout(a.Config.Client.PollTimeout),
		monitor.WithLogger(a.Logger),
	)
}
