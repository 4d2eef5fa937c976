package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/tabchat/internal/lifecycle"
	"github.com/dohr-michael/tabchat/internal/timeline"
	"github.com/dohr-michael/tabchat/internal/upload"
)

// NewAskCommand returns the ask subcommand.
func NewAskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Upload files, ask one question and print the conversation",
		ArgsUsage: "<question>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "CSV file or glob to upload before asking (repeatable)",
			},
		},
		Action: runAsk,
	}
}

func runAsk(ctx context.Context, cmd *cli.Command) error {
	question := cmd.Args().First()
	if question == "" {
		return fmt.Errorf("usage: tabchat ask [--file <glob>]... <question>")
	}

	setupLogging(cmd, os.Stderr)
	cfg := loadConfig(cmd)

	// Read the files first so a bad pattern does not open a session.
	var sel *upload.Selection
	if patterns := cmd.StringSlice("file"); len(patterns) > 0 {
		var err error
		if sel, err = upload.LoadSelection(patterns...); err != nil {
			return err
		}
	}

	conv, err := newConversation(cfg)
	if err != nil {
		return err
	}
	conv.OnAppend(func(added []timeline.Message) {
		for _, m := range added {
			fmt.Fprintln(os.Stdout, m.String())
		}
	})

	if err := conv.StartSession(ctx); err != nil {
		return errors.New("could not start session")
	}
	if conv.State() != lifecycle.Active {
		return fmt.Errorf("session is %s", conv.State())
	}

	var errs []error
	if sel != nil {
		if err := conv.UploadFiles(ctx, sel); err != nil {
			errs = append(errs, fmt.Errorf("upload: %w", err))
		}
	}
	if len(errs) == 0 {
		if err := conv.SubmitQuery(ctx, question); err != nil {
			errs = append(errs, fmt.Errorf("query: %w", err))
		}
	}
	// The process exits right after, so end the session in the foreground.
	if err := conv.EndSession(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, fmt.Errorf("end session: %w", err))
	}
	return errors.Join(errs...)
}
