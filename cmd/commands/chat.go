package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/dohr-michael/tabchat/clients/tui"
)

// NewChatCommand returns the chat subcommand.
func NewChatCommand() *cli.Command {
	return &cli.Command{
		Name:   "chat",
		Usage:  "Open an interactive session in the terminal",
		Action: runChat,
	}
}

func runChat(ctx context.Context, cmd *cli.Command) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("chat needs a terminal, use `tabchat ask` instead")
	}

	cfg := loadConfig(cmd)

	// The screen belongs to the TUI, logs go to a file.
	logPath := cfg.TUI.LogFile
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	setupLogging(cmd, logFile)

	conv, err := newConversation(cfg)
	if err != nil {
		return err
	}
	return tui.Run(ctx, conv)
}
