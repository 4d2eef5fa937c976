package tui

import (
	"fmt"
	"strings"
)

// command is a parsed slash command line such as "/upload data/*.csv".
type command struct {
	name string
	args []string
}

// parseCommand splits a slash command. ok is false for plain queries.
func parseCommand(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{}, false
	}
	fields := strings.Fields(line)
	return command{name: strings.ToLower(fields[0]), args: fields[1:]}, true
}

const helpText = "Commands: /upload <glob>... | /start | /end | /quit"

func (c command) validate() error {
	switch c.name {
	case "/upload":
		if len(c.args) == 0 {
			return fmt.Errorf("usage: /upload <file or glob>...")
		}
	case "/start", "/end", "/quit", "/help":
		if len(c.args) > 0 {
			return fmt.Errorf("%s takes no argument", c.name)
		}
	default:
		return fmt.Errorf("unknown command %s (%s)", c.name, helpText)
	}
	return nil
}
