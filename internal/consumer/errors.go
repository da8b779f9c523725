package consumer

import "errors"

// errDuplicate is the ledger short-circuit: not a failure, resolved to skip.
var errDuplicate = errors.New("duplicate delivery")

// PermanentError marks a failure that retrying cannot fix (malformed
// payload, exhausted optimistic-lock retries). The message is dead-lettered
// immediately, no retry burned.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the framework dead-letters instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError anywhere in its
// chain. Everything else is treated as transient infrastructure failure.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
