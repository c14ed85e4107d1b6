package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "context deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryable_Nil(t *testing.T) {
	if Retryable(nil) {
		t.Error("nil error must not be retryable")
	}
}

func TestRetryable_NetworkTimeout(t *testing.T) {
	err := &net.OpError{Op: "read", Err: timeoutErr{}}
	if !Retryable(err) {
		t.Error("network timeout should be retryable")
	}
}

func TestRetryable_ConnectionRefused(t *testing.T) {
	err := fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)
	if !Retryable(err) {
		t.Error("connection refused should be retryable")
	}
}

func TestRetryable_PgTransientCodes(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "53300", "57P03", "08006"} {
		err := fmt.Errorf("query failed: %w", &pgconn.PgError{Code: code})
		if !Retryable(err) {
			t.Errorf("SQLSTATE %s should be retryable", code)
		}
	}
}

func TestRetryable_PgPermanentCodes(t *testing.T) {
	// Constraint violation and undefined table never clear on retry.
	for _, code := range []string{"23505", "42P01"} {
		err := fmt.Errorf("query failed: %w", &pgconn.PgError{Code: code})
		if Retryable(err) {
			t.Errorf("SQLSTATE %s should not be retryable", code)
		}
	}
}

func TestRetryable_OllamaOverloadStatus(t *testing.T) {
	err := eris.Errorf("ollama: unexpected status %d: model loading", 503)
	if !Retryable(err) {
		t.Error("503 from the LLM backend should be retryable")
	}
}

func TestRetryable_PlainError(t *testing.T) {
	if Retryable(errors.New("no name column in header")) {
		t.Error("ordinary errors must not be retryable")
	}
}
