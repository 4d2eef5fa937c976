package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNoMatch is returned when a pattern matches no file.
var ErrNoMatch = errors.New("no file matches")

// Selection is the set of files currently picked by the user. It is cleared
// after a successful upload so the same files are not sent twice by accident.
type Selection struct {
	mu    sync.Mutex
	files []Candidate
}

// NewSelection creates a selection holding cands.
func NewSelection(cands ...Candidate) *Selection {
	return &Selection{files: slices.Clone(cands)}
}

// LoadSelection reads every file matched by patterns. Patterns support "**"
// (e.g. "data/**/*.csv"); a pattern without glob syntax names a single file.
func LoadSelection(patterns ...string) (*Selection, error) {
	var (
		paths []string
		seen  = make(map[string]bool)
	)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w %q", ErrNoMatch, pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}

	sel := &Selection{}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		sel.files = append(sel.files, NewCandidate(filepath.Base(p), data))
	}
	return sel, nil
}

// Files returns a copy of the selected candidates.
func (s *Selection) Files() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.files)
}

// Len returns the number of selected files.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
}
