package live

import "net/http"

// liveError carries the HTTP status a failed operation maps to.
type liveError struct {
	status int
	msg    string
}

func (e *liveError) Error() string {
	return e.msg
}

func errNotFound(msg string) *liveError {
	return &liveError{status: http.StatusNotFound, msg: msg}
}

func errForbidden(msg string) *liveError {
	return &liveError{status: http.StatusForbidden, msg: msg}
}

func errOutOfRange(msg string) *liveError {
	return &liveError{status: http.StatusBadRequest, msg: msg}
}
