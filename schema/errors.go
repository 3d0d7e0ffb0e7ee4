package schema

import (
	"errors"
	"fmt"
)

// ErrMalformedSchema is matched by every error raised while decoding an
// introspection document. It means the document does not have the shape the
// migrator depends on, so the whole run has to stop.
var ErrMalformedSchema = errors.New("malformed schema document")

type MalformedSchemaError struct {
	Path   string
	Reason string
}

func (e *MalformedSchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrMalformedSchema, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrMalformedSchema, e.Path, e.Reason)
}

func (e *MalformedSchemaError) Is(target error) bool {
	return target == ErrMalformedSchema
}

func malformed(path, reason string) error {
	return &MalformedSchemaError{Path: path, Reason: reason}
}
