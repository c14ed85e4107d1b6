package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes that clear on their own: serialization failure, deadlock,
// too many connections, cannot-connect-now during startup or shutdown.
var retryablePgCodes = map[string]bool{
	"40001": true,
	"40P01": true,
	"53300": true,
	"57P03": true,
}

// Errors from the Ollama client arrive as flat eris strings, so HTTP-level
// backpressure is matched on the status text.
var retryableFragments = []string{
	"connection refused",
	"connection reset by peer",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"tls handshake timeout",
	"status 429",
	"status 502",
	"status 503",
	"status 504",
}

// Retryable reports whether an error is worth another attempt: network
// timeouts, refused or reset connections, Postgres errors pgx marks safe
// to retry, transient SQLSTATE classes, and LLM backend overload responses.
func Retryable(err error) bool {
	if err == nil {
		return false
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

	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") || retryablePgCodes[pgErr.Code] {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, f := range retryableFragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}
