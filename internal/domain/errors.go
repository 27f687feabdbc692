package domain

import "errors"

// Attribution error taxonomy. None of these may fail the calling signup
// flow; NoCode and AlreadyAttributed are expected outcomes, the rest are
// diagnostics. Anything not in this list is an internal (storage or
// transport) failure and attribution degrades to a no-op.
var (
	// ErrNoCode means no referral signal was present on any path.
	ErrNoCode = errors.New("no referral signal")

	// ErrInvalidFormat means the candidate code failed the format check.
	ErrInvalidFormat = errors.New("malformed referral code")

	// ErrUnknownCode means the code is not in the directory.
	ErrUnknownCode = errors.New("unknown referral code")

	// ErrInactiveReferrer means the code's owner is blocked or inactive.
	ErrInactiveReferrer = errors.New("referrer inactive or blocked")

	// ErrSelfReferral means the code belongs to the registering user.
	ErrSelfReferral = errors.New("self referral rejected")

	// ErrAlreadyAttributed means a ledger record already exists for the
	// referred user. Idempotent repeat, benign for callers.
	ErrAlreadyAttributed = errors.New("user already attributed")

	// ErrCodeTaken means a directory code collided on insert.
	ErrCodeTaken = errors.New("referral code already taken")
)

// Benign reports whether an attribution failure is an expected outcome
// that callers should treat as a silent no-op.
func Benign(err error) bool {
	return errors.Is(err, ErrNoCode) || errors.Is(err, ErrAlreadyAttributed)
}
