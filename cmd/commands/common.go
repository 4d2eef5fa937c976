package commands

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/tabchat/clients/analytics"
	"github.com/dohr-michael/tabchat/internal/config"
	"github.com/dohr-michael/tabchat/internal/conversation"
	"github.com/dohr-michael/tabchat/internal/upload"
)

// loadConfig reads the config file, falling back to defaults when it is
// missing, and applies global flag overrides.
func loadConfig(cmd *cli.Command) *config.Config {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("config not loaded, using defaults", "path", path, "error", err)
		}
		cfg = config.Default()
	}

	if cmd.IsSet("server") {
		cfg.Service.BaseURL = cmd.String("server")
	}
	return cfg
}

// setupLogging sends logs to w, at debug level when --debug is set.
func setupLogging(cmd *cli.Command, w io.Writer) {
	level := slog.LevelInfo
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// newConversation builds the session core on top of the HTTP client.
func newConversation(cfg *config.Config) (*conversation.Conversation, error) {
	client, err := analytics.New(cfg.Service.BaseURL,
		analytics.WithEndpoints(endpoints(cfg)),
		analytics.WithUploadField(cfg.Upload.Field),
	)
	if err != nil {
		return nil, err
	}
	return conversation.New(client, conversation.WithValidator(upload.NewValidator(cfg.Upload.Extension))), nil
}

func endpoints(cfg *config.Config) analytics.Endpoints {
	eps := cfg.Service.Endpoints
	return analytics.Endpoints{
		StartSession: eps.StartSession,
		UploadCSV:    eps.UploadCSV,
		Query:        eps.Query,
		EndSession:   eps.EndSession,
	}
}
