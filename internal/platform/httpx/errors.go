package httpx

import (
	"errors"
	"net/http"
)

// ErrNotFound is the transport-level not-found sentinel. Domain packages
// wrap it so boundary code can map lookup misses without importing every
// domain taxonomy.
var ErrNotFound = errors.New("not found")

// StatusCoder is implemented by errors that carry their own HTTP status.
type StatusCoder interface {
	error
	HTTPStatus() int
}

// RespondError maps an error onto a problem response. Errors implementing
// StatusCoder choose their status, a wrapped ErrNotFound becomes a 404, and
// anything else an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	var sc StatusCoder
	switch {
	case errors.As(err, &sc):
		status := sc.HTTPStatus()
		Problem(w, status, http.StatusText(status), err.Error())
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
