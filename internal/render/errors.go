package render

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports a navigation that did not reach its wait condition
// in time.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("render: navigation to %s timed out after %s", e.URL, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// BlockedError reports a response that looks like an anti-bot wall.
type BlockedError struct {
	URL  string
	Type BlockType
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("render: %s blocked (%s)", e.URL, e.Type)
}

// IsBlocked reports whether err is, or wraps, a *BlockedError.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}
