package ecommerce

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// ErrNotFound is matched by a StatusError with status 404.
var ErrNotFound = errors.New("not found")

// StatusError is returned for upstream responses outside the 2xx range.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
}

// Is reports 404 responses as ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}
