// Package upload validates and encodes batches of CSV files before they are
// sent to the analytics service.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
)

const (
	// DefaultExtension is the only extension accepted unless configured otherwise.
	DefaultExtension = "csv"
	// DefaultField is the multipart field every file is sent under.
	DefaultField = "files"
)

// Candidate is a file the user picked for upload. It only lives for the
// duration of one upload call.
type Candidate struct {
	Filename  string
	Extension string
	Content   []byte
}

// NewCandidate builds a Candidate, deriving its extension from filename.
func NewCandidate(filename string, content []byte) Candidate {
	return Candidate{
		Filename:  filename,
		Extension: Extension(filename),
		Content:   content,
	}
}

// Extension returns the text after the last "." of filename, or "" when there
// is no dot.
func Extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return filename[i+1:]
}

// Validator checks candidates against a single allowed extension.
type Validator struct {
	Extension string
}

// NewValidator returns a Validator for ext; an empty ext means DefaultExtension.
func NewValidator(ext string) Validator {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = DefaultExtension
	}
	return Validator{Extension: ext}
}

// Validate returns one message per invalid candidate, in input order. It never
// stops at the first problem. An empty result means the batch may be sent.
func (v Validator) Validate(cands []Candidate) []string {
	allowed := v.Extension
	if allowed == "" {
		allowed = DefaultExtension
	}

	var problems []string
	for _, c := range cands {
		if !strings.EqualFold(c.Extension, allowed) {
			problems = append(problems, InvalidMessage(c.Filename, allowed))
		}
	}
	return problems
}

// InvalidMessage is the timeline text for a rejected file.
func InvalidMessage(filename, ext string) string {
	return fmt.Sprintf("Invalid file type: %s. Please upload only .%s files.", filename, ext)
}

// Encode writes every candidate into one multipart payload under field and
// returns the body with its content type.
func Encode(field string, cands []Candidate) (io.Reader, string, error) {
	if field == "" {
		field = DefaultField
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, c := range cands {
		part, err := w.CreateFormFile(field, c.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", c.Filename, err)
		}
		if _, err := part.Write(c.Content); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", c.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
