package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks its cause as safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// MarkTransient wraps err so IsTransient reports true for it. Nil stays nil.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// sqlState matches pgconn.PgError without importing the driver here.
type sqlState interface {
	SQLState() string
}

// Postgres conditions that clear on their own: serialization failure,
// deadlock victim, cannot-connect-now during a restart, connection
// exhaustion.
var retryableSQLStates = map[string]bool{
	"40001": true,
	"40P01": true,
	"57P03": true,
	"53300": true,
}

// transientFragments catch wrapped errors that lost their type on the way
// up: strings produced by net/http transports, pgx, and modernc sqlite.
var transientFragments = []string{
	"connection reset by peer",
	"broken pipe",
	"i/o timeout",
	"tls handshake timeout",
	"no such host",
	"temporary failure in name resolution",
	"server closed idle connection",
	"database is locked",
	"sqlite_busy",
}

// IsTransient reports whether err looks like a condition a retry can
// outwait: an explicit TransientError, a network timeout, a reset or
// refused connection, a retryable Postgres state, or a busy sqlite
// database.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var marked *TransientError
	if errors.As(err, &marked) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	var state sqlState
	if errors.As(err, &state) && retryableSQLStates[state.SQLState()] {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, frag := range transientFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
