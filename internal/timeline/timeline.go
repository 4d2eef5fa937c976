// Package timeline holds the append-only conversation log shown to the user.
package timeline

import (
	"slices"
	"sync"
)

// Kind identifies who authored a message.
type Kind int

const (
	System Kind = iota
	User
	AI
)

func (k Kind) String() string {
	switch k {
	case System:
		return "system"
	case User:
		return "user"
	case AI:
		return "ai"
	default:
		return "unknown"
	}
}

// Label is the prefix shown in front of a message.
func (k Kind) Label() string {
	switch k {
	case User:
		return "You"
	case AI:
		return "AI"
	default:
		return "System"
	}
}

// Message is a single timeline entry. It is never modified once appended.
type Message struct {
	Kind Kind
	Text string
}

// String formats the message as "<Label>: <Text>".
func (m Message) String() string {
	return m.Kind.Label() + ": " + m.Text
}

// SystemMessages builds one System message per line.
func SystemMessages(lines ...string) []Message {
	msgs := make([]Message, len(lines))
	for i, l := range lines {
		msgs[i] = Message{Kind: System, Text: l}
	}
	return msgs
}

// Listener is notified with the messages of every Append call.
type Listener func(added []Message)

// Timeline is an ordered, append-only list of messages. It is safe for
// concurrent use.
type Timeline struct {
	mu        sync.RWMutex
	messages  []Message
	listeners []Listener
}

// New creates an empty timeline.
func New() *Timeline {
	return &Timeline{}
}

// Append adds msgs at the end, as one update: entries of two concurrent
// Append calls never interleave.
func (t *Timeline) Append(msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	added := slices.Clone(msgs)

	t.mu.Lock()
	t.messages = append(t.messages, added...)
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()

	for _, l := range listeners {
		l(slices.Clone(added))
	}
}

// Snapshot returns a copy of the messages in insertion order.
func (t *Timeline) Snapshot() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.messages)
}

// Len returns the number of messages.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// OnAppend registers l. Listeners run on the appending goroutine, after the
// timeline lock is released.
func (t *Timeline) OnAppend(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}
