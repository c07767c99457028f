package cover

import (
	"errors"
	"fmt"
)

var ErrCover = errors.New("cover unavailable")

// Error describes a failed cover operation.
type Error struct {
	Op      string
	MusicID int64
	Err     error
}

func (e *Error) Error() string {
	if e.MusicID != 0 {
		return fmt.Sprintf("%s %d: %v", e.Op, e.MusicID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrCover, e.Err}
}

func newError(op string, musicID int64, err error) *Error {
	return &Error{Op: op, MusicID: musicID, Err: err}
}
