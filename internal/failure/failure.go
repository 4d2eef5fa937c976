// Package failure classifies failed requests to the analytics service into
// display lines for the conversation timeline.
package failure

import (
	"errors"
	"fmt"
)

// NoResponseMessage is shown when a request was sent but nothing came back.
const NoResponseMessage = "No response received from the server."

// ServerError is a non-2xx response from the service.
type ServerError struct {
	Status     int
	StatusText string
	Body       Body
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.StatusText)
}

// Lines renders the status line followed by the body lines.
func (e *ServerError) Lines() []string {
	lines := []string{e.Error()}
	if e.Body != nil {
		lines = append(lines, e.Body.Lines()...)
	}
	return lines
}

// NetworkError means the request left the client but no response arrived.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("no response: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ClientError means the request could not be built or its response could not
// be understood.
type ClientError struct {
	Err error
}

func (e *ClientError) Error() string {
	if e.Err == nil {
		return "client error"
	}
	return e.Err.Error()
}

func (e *ClientError) Unwrap() error { return e.Err }

// Classify turns err into an ordered list of display lines. ServerError wins
// over NetworkError, which wins over ClientError. Errors outside the union are
// reported like a ClientError. When nothing can be said, fallback is returned.
func Classify(err error, fallback string) []string {
	var lines []string

	var (
		serverErr  *ServerError
		networkErr *NetworkError
		clientErr  *ClientError
	)
	switch {
	case err == nil:
	case errors.As(err, &serverErr):
		lines = serverErr.Lines()
	case errors.As(err, &networkErr):
		lines = []string{NoResponseMessage}
	case errors.As(err, &clientErr):
		lines = []string{"Error: " + clientErr.Error()}
	default:
		lines = []string{"Error: " + err.Error()}
	}

	if len(lines) == 0 {
		lines = []string{fallback}
	}
	return lines
}
