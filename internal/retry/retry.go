// Package retry decides which download failures are worth another attempt
// and how long to wait between attempts.
package retry

import (
	"math"
	"strings"
	"time"
)

// permanentMarkers identify client-side HTTP outcomes that will never succeed
// on retry. Matching is done against the error's textual representation, so
// both typed status errors and plain wrapped messages are caught.
var permanentMarkers = []string{
	"not found",
	"forbidden",
	"unauthorized",
	"404",
	"403",
	"401",
}

// Policy classifies failures and computes exponential backoff delays.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Retryable reports whether err is a transient failure. Network faults,
// timeouts and digest mismatches are all transient; only client-side HTTP
// outcomes (not found, forbidden, unauthorized) are permanent.
func (p Policy) Retryable(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return true
}

// Delay returns the backoff before re-attempting after the given attempt,
// 0-indexed: min(initial * 2^attempt, max).
func (p Policy) Delay(attempt int) time.Duration {
	d := time.Duration(float64(p.InitialDelay) * math.Pow(2, float64(attempt)))
	if d <= 0 || d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
