package story

import (
	"errors"
	"fmt"
)

// ErrInconsistentStory marks persisted story data that cannot be rebuilt.
// It indicates a persistence defect, not a bad request.
var ErrInconsistentStory = errors.New("inconsistent story data")

// ErrNoRootNode is returned when none of a story's nodes carries the root flag.
var ErrNoRootNode = fmt.Errorf("%w: no root node", ErrInconsistentStory)

// ValidationError describes a generated story that does not match the
// expected shape. Path locates the offending element, e.g.
// "rootNode.options[1].nextNode".
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid story at %s: %s", e.Path, e.Reason)
}

func invalid(path, format string, args ...any) *ValidationError {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
