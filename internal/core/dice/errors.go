package dice

import (
	"errors"
	"fmt"
)

// ErrInvalidNotation matches every error returned by Parse.
var ErrInvalidNotation = errors.New("invalid notation")

// ErrExplodeLimit indicates an exploding die kept rolling its maximum face
// past the roller's chain limit. It is an internal failure: the notation was
// valid, the evaluation could not finish.
var ErrExplodeLimit = errors.New("exploding dice exceeded chain limit")

const exampleFormats = "3d6, 1d20+5, 4d6kh3, 2d20kl1, 4d6dl1, 4d6r1, 3d6!, 5d10>8, 1d%"

// NotationError reports why a notation string was rejected.
//
// Message is shown to users verbatim.
type NotationError struct {
	Message string
}

// Error implements the error interface.
func (e *NotationError) Error() string {
	return e.Message
}

// Is reports whether target is ErrInvalidNotation.
func (e *NotationError) Is(target error) bool {
	return target == ErrInvalidNotation
}

func notationErrorf(format string, args ...any) *NotationError {
	return &NotationError{Message: fmt.Sprintf(format, args...)}
}

func errEmptyNotation() *NotationError {
	return &NotationError{Message: "Dice notation cannot be empty"}
}

func errNoDiceGroup() *NotationError {
	return notationErrorf("Invalid dice notation. Use formats like: %s", exampleFormats)
}

func errInvalidPart(part string) *NotationError {
	return notationErrorf("Invalid notation part: %q. Use dice notation (e.g. 2d6) or whole-number modifiers (e.g. +3).", part)
}
