package portal

import (
	"errors"
	"fmt"
)

var (
	ErrTableNotFound  = errors.New("table_not_found")
	ErrDuplicateTable = errors.New("duplicate_table")
	ErrEditRejected   = errors.New("edit_rejected")
)

// Error is the portal's error envelope. The portal returns HTTP 200 with an
// embedded error object, so envelope decoding happens on every response.
type Error struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (e *Error) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("portal error %d: %s (%s)", e.Code, e.Message, e.Details[0])
	}
	return fmt.Sprintf("portal error %d: %s", e.Code, e.Message)
}
