package timeline

import (
	"fmt"
	"sync"
	"testing"
)

func TestAppendPreservesOrder(t *testing.T) {
	tl := New()
	tl.Append(Message{Kind: System, Text: "one"})
	tl.Append(Message{Kind: User, Text: "two"}, Message{Kind: AI, Text: "three"})

	got := tl.Snapshot()
	want := []string{"System: one", "You: two", "AI: three"}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i, m := range got {
		if m.String() != want[i] {
			t.Errorf("message %d: expected %q, got %q", i, want[i], m.String())
		}
	}
}

func TestAppendEmptyIsNoop(t *testing.T) {
	tl := New()
	calls := 0
	tl.OnAppend(func([]Message) { calls++ })

	tl.Append()

	if tl.Len() != 0 {
		t.Fatalf("expected empty timeline, got %d", tl.Len())
	}
	if calls != 0 {
		t.Fatalf("expected no listener call, got %d", calls)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	tl := New()
	tl.Append(Message{Kind: User, Text: "hello"})

	snap := tl.Snapshot()
	snap[0].Text = "tampered"

	if got := tl.Snapshot()[0].Text; got != "hello" {
		t.Fatalf("expected stored message untouched, got %q", got)
	}
}

func TestAppendCopiesInput(t *testing.T) {
	tl := New()
	msgs := []Message{{Kind: User, Text: "original"}}
	tl.Append(msgs...)
	msgs[0].Text = "changed"

	if got := tl.Snapshot()[0].Text; got != "original" {
		t.Fatalf("expected %q, got %q", "original", got)
	}
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	tl := New()

	const writers = 16
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			tl.Append(SystemMessages(
				fmt.Sprintf("%d-a", w),
				fmt.Sprintf("%d-b", w),
				fmt.Sprintf("%d-c", w),
			)...)
		}(w)
	}
	wg.Wait()

	snap := tl.Snapshot()
	if len(snap) != writers*3 {
		t.Fatalf("expected %d messages, got %d", writers*3, len(snap))
	}
	for i := 0; i < len(snap); i += 3 {
		var w int
		if _, err := fmt.Sscanf(snap[i].Text, "%d-a", &w); err != nil {
			t.Fatalf("batch at %d does not start with an -a entry: %q", i, snap[i].Text)
		}
		if snap[i+1].Text != fmt.Sprintf("%d-b", w) || snap[i+2].Text != fmt.Sprintf("%d-c", w) {
			t.Fatalf("batch %d interleaved: %v", w, snap[i:i+3])
		}
	}
}

func TestLengthNeverDecreases(t *testing.T) {
	tl := New()
	prev := tl.Snapshot()
	for i := 0; i < 10; i++ {
		tl.Append(Message{Kind: Kind(i % 3), Text: fmt.Sprint(i)})
		cur := tl.Snapshot()
		if len(cur) < len(prev) {
			t.Fatalf("length decreased from %d to %d", len(prev), len(cur))
		}
		for j := range prev {
			if cur[j] != prev[j] {
				t.Fatalf("entry %d changed from %v to %v", j, prev[j], cur[j])
			}
		}
		prev = cur
	}
}

func TestOnAppendReceivesBatch(t *testing.T) {
	tl := New()
	var got [][]Message
	tl.OnAppend(func(added []Message) { got = append(got, added) })

	tl.Append(SystemMessages("a", "b")...)
	tl.Append(Message{Kind: AI, Text: "c"})

	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if len(got[0]) != 2 || got[0][1].Text != "b" {
		t.Errorf("unexpected first batch: %v", got[0])
	}
	if len(got[1]) != 1 || got[1][0].Kind != AI {
		t.Errorf("unexpected second batch: %v", got[1])
	}
}
