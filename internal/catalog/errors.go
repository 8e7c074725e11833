package catalog

import (
	"errors"
	"fmt"
)

// TransientError marks a fetch failure worth retrying: network errors,
// timeouts, 5xx and 429 responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient fetch error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a fetch failure that retrying cannot repair, such as
// an unexpected response shape.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent fetch error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// ExhaustedError is returned once the retry budget for a page is spent. It
// is fatal for the whole aggregation run that contains the page. Attempts
// counts the retries after the initial attempt.
type ExhaustedError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fetch exhausted for page %d after %d retries: %v", e.Page, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
