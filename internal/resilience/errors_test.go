package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

// pgStateErr mimics pgconn.PgError's SQLState method.
type pgStateErr struct {
	code string
}

func (e *pgStateErr) Error() string    { return "pg error " + e.code }
func (e *pgStateErr) SQLState() string { return e.code }

func TestIsTransient_Marked(t *testing.T) {
	if !IsTransient(MarkTransient(errors.New("version moved during load"))) {
		t.Error("expected marked error to be transient")
	}
}

func TestIsTransient_MarkedWrapped(t *testing.T) {
	inner := MarkTransient(errors.New("store busy"))
	wrapped := fmt.Errorf("load dataset: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped marked error to be transient")
	}
}

func TestMarkTransient_Nil(t *testing.T) {
	if MarkTransient(nil) != nil {
		t.Error("expected nil in, nil out")
	}
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_PlainError(t *testing.T) {
	if IsTransient(errors.New("row 7: missing name column")) {
		t.Error("plain error should not be transient")
	}
}

func TestIsTransient_ConnectionErrors(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		err := fmt.Errorf("dial tcp: %w", errno)
		if !IsTransient(err) {
			t.Errorf("expected %v to be transient", errno)
		}
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransient_PostgresStates(t *testing.T) {
	retryable := []string{"40001", "40P01", "57P03", "53300"}
	for _, code := range retryable {
		err := fmt.Errorf("upsert entities: %w", &pgStateErr{code: code})
		if !IsTransient(err) {
			t.Errorf("expected SQLSTATE %s to be transient", code)
		}
	}

	// Constraint violations are data problems, not weather.
	for _, code := range []string{"23505", "22P02", "42703"} {
		if IsTransient(&pgStateErr{code: code}) {
			t.Errorf("expected SQLSTATE %s to NOT be transient", code)
		}
	}
}

func TestIsTransient_StringFragments(t *testing.T) {
	msgs := []string{
		"read tcp 10.0.0.1:5432: connection reset by peer",
		"write: broken pipe",
		"Get \"https://example.org/list.csv\": TLS handshake timeout",
		"i/o timeout",
		"database is locked (5) (SQLITE_BUSY)",
	}
	for _, m := range msgs {
		if !IsTransient(errors.New(m)) {
			t.Errorf("expected %q to be transient", m)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	marked := MarkTransient(inner)

	if !errors.Is(marked, inner) {
		t.Error("expected Unwrap to expose the cause")
	}
	if marked.Error() != "root cause" {
		t.Errorf("expected message %q, got %q", "root cause", marked.Error())
	}
}
