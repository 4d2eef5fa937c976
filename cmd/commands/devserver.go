package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/tabchat/internal/devserver"
)

// NewDevServerCommand returns the devserver subcommand.
func NewDevServerCommand() *cli.Command {
	return &cli.Command{
		Name:  "devserver",
		Usage: "Run a local analytics service answering SQL over uploaded CSV files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runDevServer,
	}
}

func runDevServer(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd, os.Stderr)
	cfg := loadConfig(cmd)

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.DevServer.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.DevServer.Port = cmd.Int("port")
	}

	server, err := devserver.NewServer(devserver.Options{
		Host:           cfg.DevServer.Host,
		Port:           cfg.DevServer.Port,
		SessionTimeout: cfg.DevServer.SessionTimeout.Duration(),
		MaxTables:      cfg.DevServer.MaxTables,
		SweepSchedule:  cfg.DevServer.SweepSchedule,
		Endpoints:      endpoints(cfg),
		UploadField:    cfg.Upload.Field,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
