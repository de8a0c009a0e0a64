package completion

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the completion service replies without
// any content.
var ErrEmptyResponse = errors.New("completion: empty response")

// ParseError is returned when the reply is not valid JSON.
type ParseError struct {
	// Content is the raw reply after markdown fences were stripped.
	Content string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("completion: parse response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError is returned when the reply is valid JSON but a required field
// is missing or has the wrong type.
type SchemaError struct {
	// Field is the offending field path, e.g. "items[1].evidence_quote".
	Field string
}

func (e *SchemaError) Error() string {
	return "completion: missing or invalid " + e.Field
}

// IsResponseError reports whether err describes an unusable reply (empty,
// not JSON, or off-schema) as opposed to a failed call to the service.
func IsResponseError(err error) bool {
	var (
		pe *ParseError
		se *SchemaError
	)
	return errors.Is(err, ErrEmptyResponse) || errors.As(err, &pe) || errors.As(err, &se)
}
