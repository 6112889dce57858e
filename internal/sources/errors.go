package sources

import (
	"errors"
	"fmt"
)

// Parse error kinds. A source that answered well-formed but empty is not the
// same failure as one that answered with something we cannot read.
var (
	ErrNoData    = errors.New("source returned no data")
	ErrMalformed = errors.New("malformed source response")
)

// ErrUnsupportedSource is returned when no adapter is registered for a source kind.
var ErrUnsupportedSource = errors.New("unsupported source kind")

// StatusError is an error status embedded in an otherwise successful response body.
type StatusError struct {
	Source  string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Source, e.Code, e.Message)
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Source, e.StatusCode, e.Body)
}

// ParseError reports a response that could not be turned into observations.
// Kind is ErrNoData or ErrMalformed.
type ParseError struct {
	Source string
	Kind   error
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Source, e.Kind, e.Detail)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

func noData(source, detail string) error {
	return &ParseError{Source: source, Kind: ErrNoData, Detail: detail}
}

func malformed(source, format string, args ...any) error {
	return &ParseError{Source: source, Kind: ErrMalformed, Detail: fmt.Sprintf(format, args...)}
}

// retryable reports whether a failed attempt is worth repeating. Responses the
// source answered deliberately (embedded status, unreadable body) are final.
func retryable(err error) bool {
	var statusErr *StatusError
	var parseErr *ParseError
	switch {
	case errors.As(err, &statusErr), errors.As(err, &parseErr):
		return false
	case errors.Is(err, ErrUnsupportedSource):
		return false
	}
	return true
}
