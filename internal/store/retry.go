package store

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strings"
	"time"

	"attendance/internal/apperror"
)

const maxAttempts = 3

// WithRetry runs fn up to three times, backing off between attempts, when
// the failure looks transient (timeout, dropped connection, pool pressure).
// Anything else is returned as-is on the first attempt. A failure that
// survives all attempts surfaces as apperror.ErrUnavailable.
func WithRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return apperror.Unavailable(op, ctx.Err())
			}
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !Transient(err) {
			return err
		}
	}
	return apperror.Unavailable(op, err)
}

// Transient reports whether err is worth retrying at the storage boundary.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	for _, needle := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"too many clients",
		"the database system is starting up",
		"unexpected EOF",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
