package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError is returned by [Client.FetchAll] for any failure to produce a
// listing snapshot.
type NetworkError struct {
	Op         string
	StatusCode int // 0 when no response was received
	transient  bool
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Transient reports whether retrying the request may succeed.
func (e *NetworkError) Transient() bool { return e.transient }

// IsTransient reports whether err carries a transient [*NetworkError].
func IsTransient(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Transient()
}

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}
