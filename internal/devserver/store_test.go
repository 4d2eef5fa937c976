package devserver

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

func newClockStore(timeout time.Duration) (*Store, *time.Time) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st := NewStore(timeout)
	st.now = func() time.Time { return now }
	return st, &now
}

func TestStoreGetExtendsExpiry(t *testing.T) {
	st, now := newClockStore(time.Minute)
	sess := st.Create()

	*now = now.Add(50 * time.Second)
	if _, ok := st.Get(sess.id); !ok {
		t.Fatal("session should still be alive")
	}

	*now = now.Add(50 * time.Second)
	if _, ok := st.Get(sess.id); !ok {
		t.Fatal("get should have pushed back the expiry")
	}

	*now = now.Add(2 * time.Minute)
	if _, ok := st.Get(sess.id); ok {
		t.Fatal("session should have expired")
	}
}

func TestStoreSweep(t *testing.T) {
	st, now := newClockStore(time.Minute)
	old := st.Create()
	if _, err := old.load(context.Background(), []*csvTable{{name: "t", columns: []string{"a"}, rows: [][]string{{"1"}}}}, 0); err != nil {
		t.Fatal(err)
	}

	*now = now.Add(45 * time.Second)
	fresh := st.Create()

	*now = now.Add(30 * time.Second)
	if n := st.Sweep(); n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}
	old.mu.Lock()
	closed := old.db == nil
	old.mu.Unlock()
	if !closed {
		t.Fatal("expired session database should be closed")
	}
	if _, ok := st.Get(fresh.id); !ok {
		t.Fatal("fresh session should survive the sweep")
	}
	if st.Len() != 1 {
		t.Fatalf("expected 1 session left, got %d", st.Len())
	}
}

func TestStoreDelete(t *testing.T) {
	st := NewStore(time.Minute)
	sess := st.Create()
	st.Delete(sess.id)
	st.Delete(sess.id)

	if _, ok := st.Get(sess.id); ok {
		t.Fatal("deleted session should be gone")
	}
}

func TestNormalizeColumns(t *testing.T) {
	got := normalizeColumns([]string{"\ufeffid", " name ", "", "Name", "name"})
	want := []string{"id", "name", "column_3", "Name_1", "name_2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestUniqueName(t *testing.T) {
	tests := []struct {
		base  string
		taken []string
		want  string
	}{
		{"sales", nil, "sales"},
		{"sales", []string{"sales"}, "sales_1"},
		{"sales", []string{"SALES", "sales_1"}, "sales_2"},
	}
	for _, tt := range tests {
		if got := uniqueName(tt.base, tt.taken); got != tt.want {
			t.Errorf("uniqueName(%q, %v): expected %q, got %q", tt.base, tt.taken, tt.want, got)
		}
	}
}

func TestParseCSV(t *testing.T) {
	tbl, err := parseCSV("data/q1 report.csv", strings.NewReader("a,b\n1,2\n3,4\n"))
	if err != nil {
		t.Fatal(err)
	}
	if tbl.name != "q1 report" {
		t.Errorf("unexpected table name %q", tbl.name)
	}
	if len(tbl.rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(tbl.rows))
	}

	if _, err := parseCSV("empty.csv", strings.NewReader("")); err == nil {
		t.Error("expected error for empty csv")
	}
}

func TestQueryRendersNulls(t *testing.T) {
	st := NewStore(time.Minute)
	sess := st.Create()
	t.Cleanup(st.Close)

	ctx := context.Background()
	if _, err := sess.load(ctx, []*csvTable{{name: "t", columns: []string{"a", "b"}, rows: [][]string{{"x", "y"}}}}, 0); err != nil {
		t.Fatal(err)
	}

	got, err := sess.query(ctx, "SELECT a, NULL AS b FROM t")
	if err != nil {
		t.Fatal(err)
	}
	if got != "a | b\nx | NULL\n(1 row)" {
		t.Fatalf("unexpected rendering %q", got)
	}

	got, err = sess.query(ctx, "SELECT a FROM t WHERE a = 'none'")
	if err != nil {
		t.Fatal(err)
	}
	if got != "a\n(0 rows)" {
		t.Fatalf("unexpected rendering %q", got)
	}
}

func TestLoadEnforcesTableLimitConcurrently(t *testing.T) {
	st := NewStore(time.Minute)
	sess := st.Create()
	t.Cleanup(st.Close)

	batch := func(prefix string) []*csvTable {
		return []*csvTable{
			{name: prefix + "1", columns: []string{"a"}, rows: [][]string{{"1"}}},
			{name: prefix + "2", columns: []string{"a"}, rows: [][]string{{"2"}}},
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		loaded   int
		rejected int
	)
	for _, prefix := range []string{"x", "y", "z"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sess.load(context.Background(), batch(prefix), 3)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				loaded++
			case errors.Is(err, errTooManyTables):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if loaded != 1 || rejected != 2 {
		t.Fatalf("expected 1 batch loaded and 2 rejected, got %d and %d", loaded, rejected)
	}
	if n := len(sess.Tables()); n != 2 {
		t.Fatalf("expected 2 tables, got %d", n)
	}
}
