package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dohr-michael/tabchat/internal/timeline"
)

// Run shows the conversation until the user quits or ctx is cancelled. The
// session is torn down on exit; Run does not wait for the end request.
func Run(ctx context.Context, conv Conversation) error {
	p := tea.NewProgram(NewModel(ctx, conv), tea.WithAltScreen(), tea.WithContext(ctx))

	// Send returns immediately once the program has exited.
	conv.OnAppend(func([]timeline.Message) { p.Send(timelineMsg{}) })

	_, err := p.Run()
	conv.Teardown()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
