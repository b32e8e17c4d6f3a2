package repository

import "errors"

// ErrNotFound is returned by lookups that match no row.  Callers translate
// it into their own not-found error or an HTTP 404.
var ErrNotFound = errors.New("not found")
