package http

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedRequest = errors.New("http: malformed request line")

// Request is the parsed request line. Headers and body are never looked at.
type Request struct {
	Method  string
	Path    string
	Version string
}

// ParseRequest extracts method, path and version from the first line of
// raw. The line must hold exactly three non-empty tokens separated by
// single spaces.
func ParseRequest(raw string) (Request, error) {
	requestLine, _, _ := strings.Cut(raw, "\r\n")

	parts := strings.Split(requestLine, " ")
	if len(parts) != 3 {
		return Request{}, fmt.Errorf("%w: %q", ErrMalformedRequest, requestLine)
	}
	for _, part := range parts {
		if part == "" {
			return Request{}, fmt.Errorf("%w: %q", ErrMalformedRequest, requestLine)
		}
	}

	return Request{
		Method:  parts[0],
		Path:    parts[1],
		Version: parts[2],
	}, nil
}
