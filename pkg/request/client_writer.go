package request

import (
	"errors"
	"net/http"
)

// ErrInternalServer is the message returned to a client when a handler
// panics or fails unexpectedly.
var ErrInternalServer = errors.New("internal server error")

// ClientWriter wraps an http.ResponseWriter and records the status code that
// was written to it, so that middleware can report on it after the handler
// has run.
type ClientWriter struct {
	http.ResponseWriter

	// statusCode is the status code that was written to the client.
	statusCode int
}

// NewClientWriter creates a new ClientWriter.
func NewClientWriter(w http.ResponseWriter) *ClientWriter {
	return &ClientWriter{
		ResponseWriter: w,
	}
}

func (c *ClientWriter) WriteHeader(statusCode int) {
	if c.statusCode == 0 {
		c.statusCode = statusCode
	}
	c.ResponseWriter.WriteHeader(statusCode)
}

func (c *ClientWriter) Write(b []byte) (int, error) {
	// A write without an explicit header is a 200 per net/http.
	if c.statusCode == 0 {
		c.statusCode = http.StatusOK
	}
	return c.ResponseWriter.Write(b)
}

// StatusCode returns the status code that was written to the client.
func (c *ClientWriter) StatusCode() int {
	if c.statusCode == 0 {
		return http.StatusOK
	}
	return c.statusCode
}
