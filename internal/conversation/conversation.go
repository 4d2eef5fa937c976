// Package conversation is the session-scoped core driven by a host view. It
// owns the session state machine and the timeline; the host only reads
// snapshots and invokes operations.
//
// Failures never stop the core: they are classified and appended to the
// timeline as System messages. Operations also return the error so one-shot
// hosts can exit with a status.
package conversation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dohr-michael/tabchat/internal/failure"
	"github.com/dohr-michael/tabchat/internal/lifecycle"
	"github.com/dohr-michael/tabchat/internal/timeline"
	"github.com/dohr-michael/tabchat/internal/upload"
)

// StartingMessage is appended when a session start is issued.
const StartingMessage = "Starting session..."

const (
	fallbackStart  = "Failed to start session"
	fallbackEnd    = "Failed to end session"
	fallbackQuery  = "Failed to process query"
	fallbackUpload = "Failed to upload CSV files"
)

// ErrInvalidFiles is returned when an upload batch is rejected locally.
var ErrInvalidFiles = errors.New("invalid files in upload batch")

// Service is the remote analytics service.
type Service interface {
	StartSession(ctx context.Context) (string, error)
	Upload(ctx context.Context, files []upload.Candidate) (string, error)
	Query(ctx context.Context, text string) (string, error)
	EndSession(ctx context.Context) (string, error)
}

// Conversation is the client side of one analytics session.
type Conversation struct {
	svc       Service
	machine   *lifecycle.Machine
	timeline  *timeline.Timeline
	validator upload.Validator
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithValidator overrides the upload validator.
func WithValidator(v upload.Validator) Option {
	return func(c *Conversation) { c.validator = v }
}

// New creates a conversation backed by svc.
func New(svc Service, opts ...Option) *Conversation {
	c := &Conversation{
		svc:       svc,
		machine:   lifecycle.NewMachine(),
		timeline:  timeline.New(),
		validator: upload.NewValidator(upload.DefaultExtension),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeline returns a snapshot of the conversation.
func (c *Conversation) Timeline() []timeline.Message {
	return c.timeline.Snapshot()
}

// OnAppend registers a listener for new timeline entries.
func (c *Conversation) OnAppend(l timeline.Listener) {
	c.timeline.OnAppend(l)
}

// State returns the session lifecycle state.
func (c *Conversation) State() lifecycle.State {
	return c.machine.State()
}

// StartSession opens the session. It does nothing unless the session was never
// started (or its last start failed) and the host is still mounted.
func (c *Conversation) StartSession(ctx context.Context) error {
	if !c.machine.BeginStart() {
		return nil
	}
	c.timeline.Append(timeline.Message{Kind: timeline.System, Text: StartingMessage})

	info, err := c.svc.StartSession(ctx)
	if err != nil {
		c.machine.CompleteStart(false)
		c.fail("start session", err, fallbackStart)
		return err
	}
	// Active only once the info line is in: no end can precede it.
	c.timeline.Append(timeline.Message{Kind: timeline.System, Text: info})
	c.machine.CompleteStart(true)

	// The host went away while the start was in flight.
	if c.machine.Unmounted() {
		go c.EndSession(context.WithoutCancel(ctx))
	}
	return nil
}

// EndSession closes an active session. The session is Ended afterwards
// whatever the outcome of the request.
func (c *Conversation) EndSession(ctx context.Context) error {
	if !c.machine.BeginEnd() {
		return nil
	}

	info, err := c.svc.EndSession(ctx)
	c.machine.CompleteEnd()
	if err != nil {
		c.fail("end session", err, fallbackEnd)
		return err
	}
	c.timeline.Append(timeline.Message{Kind: timeline.System, Text: info})
	return nil
}

// SubmitQuery appends the question as a User message right away, then the
// answer as an AI message. The User message stays even if the query fails.
func (c *Conversation) SubmitQuery(ctx context.Context, text string) error {
	c.timeline.Append(timeline.Message{Kind: timeline.User, Text: text})

	answer, err := c.svc.Query(ctx, text)
	if err != nil {
		c.fail("query", err, fallbackQuery)
		return err
	}
	c.timeline.Append(timeline.Message{Kind: timeline.AI, Text: answer})
	return nil
}

// UploadFiles validates the whole selection and uploads it in one request.
// An empty selection is a no-op. If any file is invalid nothing is sent. The
// selection is cleared after a successful upload.
func (c *Conversation) UploadFiles(ctx context.Context, sel *upload.Selection) error {
	files := sel.Files()
	if len(files) == 0 {
		return nil
	}

	if problems := c.validator.Validate(files); len(problems) > 0 {
		c.timeline.Append(timeline.SystemMessages(problems...)...)
		return ErrInvalidFiles
	}

	info, err := c.svc.Upload(ctx, files)
	if err != nil {
		c.fail("upload", err, fallbackUpload)
		return err
	}
	c.timeline.Append(timeline.Message{Kind: timeline.System, Text: info})
	sel.Clear()
	return nil
}

// Teardown is the host's unmount signal. Starting is disabled for good and an
// active session is ended on a detached goroutine. The returned channel is
// closed once that end request has finished; hosts are not expected to wait
// for it before exiting.
func (c *Conversation) Teardown() <-chan struct{} {
	done := make(chan struct{})
	if !c.machine.Unmount() {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		c.EndSession(context.Background())
	}()
	return done
}

func (c *Conversation) fail(op string, err error, fallback string) {
	slog.Warn("analytics request failed", "op", op, "error", err)
	c.timeline.Append(timeline.SystemMessages(failure.Classify(err, fallback)...)...)
}
