package bridge

import (
	stderrors "errors"

	"github.com/wippyai/ejb-bridge/errors"
)

// Status codes returned to the client for failed entry points.
const (
	StatusOK            int32 = 0
	StatusInvalidHandle int32 = 1
	StatusReadOnly      int32 = 2
	StatusOutOfBounds   int32 = 3
	StatusClosed        int32 = 4
	StatusError         int32 = 5
)

// Status translates an entry point error into a client status code.
func Status(err error) int32 {
	if err == nil {
		return StatusOK
	}
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return StatusError
	}
	switch e.Kind {
	case errors.KindInvalidHandle:
		return StatusInvalidHandle
	case errors.KindReadOnly:
		return StatusReadOnly
	case errors.KindOutOfBounds:
		return StatusOutOfBounds
	case errors.KindClosed:
		return StatusClosed
	default:
		return StatusError
	}
}
