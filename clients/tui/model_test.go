package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dohr-michael/tabchat/internal/lifecycle"
	"github.com/dohr-michael/tabchat/internal/timeline"
	"github.com/dohr-michael/tabchat/internal/upload"
)

type fakeConversation struct {
	mu       sync.Mutex
	calls    []string
	uploaded []string
	messages []timeline.Message
}

func (f *fakeConversation) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeConversation) StartSession(context.Context) error {
	f.record("start")
	return nil
}

func (f *fakeConversation) EndSession(context.Context) error {
	f.record("end")
	return nil
}

func (f *fakeConversation) SubmitQuery(_ context.Context, text string) error {
	f.record("query:" + text)
	return nil
}

func (f *fakeConversation) UploadFiles(_ context.Context, sel *upload.Selection) error {
	f.record("upload")
	for _, c := range sel.Files() {
		f.uploaded = append(f.uploaded, c.Filename)
	}
	return nil
}

func (f *fakeConversation) Timeline() []timeline.Message { return f.messages }
func (f *fakeConversation) OnAppend(timeline.Listener)   {}
func (f *fakeConversation) State() lifecycle.State       { return lifecycle.Active }
func (f *fakeConversation) Teardown() <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}

// typeLine enters line in the input and presses enter, running the resulting
// command synchronously.
func typeLine(t *testing.T, m Model, line string) (Model, tea.Msg) {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		return m, nil
	}
	msg := cmd()
	next, _ = m.Update(msg)
	return next.(Model), msg
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		ok   bool
		name string
		args int
	}{
		{"how many rows?", false, "", 0},
		{"/quit", true, "/quit", 0},
		{"  /UPLOAD a.csv b/*.csv ", true, "/upload", 2},
	}
	for _, tt := range tests {
		c, ok := parseCommand(tt.line)
		if ok != tt.ok || c.name != tt.name || len(c.args) != tt.args {
			t.Errorf("parseCommand(%q) = %+v, %v", tt.line, c, ok)
		}
	}
}

func TestCommandValidate(t *testing.T) {
	if err := (command{name: "/upload"}).validate(); err == nil {
		t.Error("upload without pattern should be rejected")
	}
	if err := (command{name: "/end", args: []string{"now"}}).validate(); err == nil {
		t.Error("end with argument should be rejected")
	}
	if err := (command{name: "/nope"}).validate(); err == nil {
		t.Error("unknown command should be rejected")
	}
	if err := (command{name: "/start"}).validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestInitStartsSession(t *testing.T) {
	conv := &fakeConversation{}
	m := NewModel(context.Background(), conv)

	msg := m.run("start", conv.StartSession)()
	if _, ok := msg.(opDoneMsg); !ok {
		t.Fatalf("expected opDoneMsg, got %T", msg)
	}
	if len(conv.calls) != 1 || conv.calls[0] != "start" {
		t.Fatalf("unexpected calls %v", conv.calls)
	}
}

func TestSubmitQuery(t *testing.T) {
	conv := &fakeConversation{}
	m := NewModel(context.Background(), conv)

	m, _ = typeLine(t, m, "  ")
	if len(conv.calls) != 0 {
		t.Fatalf("blank input must not be submitted, got %v", conv.calls)
	}

	m, _ = typeLine(t, m, "total sales? ")
	if len(conv.calls) != 1 || conv.calls[0] != "query:total sales?" {
		t.Fatalf("unexpected calls %v", conv.calls)
	}
	if m.input.Value() != "" {
		t.Error("input should be cleared after submit")
	}
}

func TestSlashCommands(t *testing.T) {
	conv := &fakeConversation{}
	m := NewModel(context.Background(), conv)

	m, _ = typeLine(t, m, "/start")
	m, _ = typeLine(t, m, "/end")
	if strings.Join(conv.calls, ",") != "start,end" {
		t.Fatalf("unexpected calls %v", conv.calls)
	}

	m, _ = typeLine(t, m, "/bogus")
	if !strings.Contains(m.status, "unknown command /bogus") || !m.statusErr {
		t.Errorf("unexpected status %q (error %v)", m.status, m.statusErr)
	}

	m, _ = typeLine(t, m, "/help")
	if m.status != helpText || m.statusErr {
		t.Errorf("help should replace the error, got %q (error %v)", m.status, m.statusErr)
	}

	_, msg := typeLine(t, m, "/quit")
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("expected quit, got %T", msg)
	}
}

func TestUploadCommand(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.csv", "b.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	conv := &fakeConversation{}
	m := NewModel(context.Background(), conv)

	m, _ = typeLine(t, m, "/upload "+filepath.Join(dir, "*.csv"))
	if strings.Join(conv.uploaded, ",") != "a.csv,b.csv" {
		t.Fatalf("unexpected upload %v", conv.uploaded)
	}

	m, _ = typeLine(t, m, "/upload "+filepath.Join(dir, "*.parquet"))
	if len(conv.calls) != 1 {
		t.Fatalf("unmatched pattern must not reach the conversation, got %v", conv.calls)
	}
	if !strings.Contains(m.status, "no file matches") || !m.statusErr {
		t.Errorf("unexpected status %q (error %v)", m.status, m.statusErr)
	}
	if !strings.Contains(m.statusLine(), "no file matches") {
		t.Errorf("status line misses the error: %q", m.statusLine())
	}
}

func TestTimelineRendering(t *testing.T) {
	conv := &fakeConversation{messages: []timeline.Message{
		{Kind: timeline.System, Text: "Session started."},
		{Kind: timeline.User, Text: "count rows"},
	}}
	m := NewModel(context.Background(), conv)

	next, _ := m.Update(timelineMsg{})
	m = next.(Model)
	if len(m.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(m.messages))
	}

	out := m.renderTimeline()
	for _, want := range []string{"System:", "Session started.", "You:", "count rows"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered timeline misses %q:\n%s", want, out)
		}
	}
}
