package coreplaylist

import (
	"errors"
	"net/http"
)

// Admission errors returned by the validation rules that gate every
// structural mutation. Handlers map them onto HTTP responses with a stable
// machine-readable code so the admin UI can roll back optimistic state.
var (
	ErrNotFound               = errors.New("referenced entity not found")
	ErrPublishedLocked        = errors.New("playlist is published; revert to draft to edit its structure")
	ErrInvalidSelectionBounds = errors.New("maxSelectMedia must be >= minSelectMedia and minSelectMedia must be >= 0")
	ErrDuplicateMembership    = errors.New("media is already a member of this section")
	ErrOrderConflict          = errors.New("sibling order changed since it was last read")
)

func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrPublishedLocked):
		return http.StatusConflict, "PUBLISHED_LOCKED"
	case errors.Is(err, ErrInvalidSelectionBounds):
		return http.StatusBadRequest, "INVALID_SELECTION_BOUNDS"
	case errors.Is(err, ErrDuplicateMembership):
		return http.StatusConflict, "DUPLICATE_MEMBERSHIP"
	case errors.Is(err, ErrOrderConflict):
		return http.StatusConflict, "ORDER_CONFLICT"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// writeAdmissionError reports a validation rejection. The pre-mutation state
// is guaranteed unchanged when this is sent.
func writeAdmissionError(w http.ResponseWriter, err error) {
	status, code := errorCode(err)
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  code,
	})
}
