package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseDotenv(t *testing.T) {
	content := `# service
TABCHAT_SERVER=http://localhost:8000
export TABCHAT_PATH=/srv/tabchat

QUOTED="with spaces"
SINGLE='single-quoted'
SPACED_KEY = spaced_value
not a pair
=orphan
`
	vars, err := parseDotenv(strings.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"TABCHAT_SERVER": "http://localhost:8000",
		"TABCHAT_PATH":   "/srv/tabchat",
		"QUOTED":         "with spaces",
		"SINGLE":         "single-quoted",
		"SPACED_KEY":     "spaced_value",
	}
	if len(vars) != len(want) {
		t.Fatalf("expected %d vars, got %d: %v", len(want), len(vars), vars)
	}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("%s: got %q, want %q", k, vars[k], v)
		}
	}
}

func TestLoadDotenvNoOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("EXISTING_VAR=new-value\nFRESH_VAR=fresh\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("EXISTING_VAR", "original")
	t.Setenv("FRESH_VAR", "")
	os.Unsetenv("FRESH_VAR")

	if err := LoadDotenv(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("EXISTING_VAR"); got != "original" {
		t.Errorf("expected existing var to be preserved, got %q", got)
	}
	if got := os.Getenv("FRESH_VAR"); got != "fresh" {
		t.Errorf("expected FRESH_VAR=fresh, got %q", got)
	}
}

func TestLoadDotenvMissingFile(t *testing.T) {
	if err := LoadDotenv("/nonexistent/.env"); err != nil {
		t.Errorf("missing file should be silently ignored, got: %v", err)
	}
}
