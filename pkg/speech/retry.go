package speech

import "time"

// Default retry parameters, matching the backoff the synthesis backend
// tolerates well in practice.
const (
	defaultMaxAttempts = 3
	defaultInterval    = 5 * time.Second
)

// RetryPolicy is the single retry/backoff configuration shared by every
// session driver. Connection drops back off linearly (Interval × attempt);
// all other retryable failures wait a flat Interval.
type RetryPolicy struct {
	// MaxAttempts is the total number of session attempts, including the
	// first. Defaults to 3 when zero.
	MaxAttempts int

	// Interval is the base backoff duration. Defaults to 5s when zero.
	Interval time.Duration
}

// withDefaults returns p with zero fields replaced by the package defaults.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.Interval <= 0 {
		p.Interval = defaultInterval
	}
	return p
}

// Delay returns how long to wait before the attempt following attempt
// (1-based), given the error that ended it.
func (p RetryPolicy) Delay(attempt int, err error) time.Duration {
	p = p.withDefaults()
	if IsTransportClosed(err) {
		return p.Interval * time.Duration(attempt)
	}
	return p.Interval
}
