package domain

import "errors"

// Error taxonomy for the referral engine. Services wrap these with context via
// fmt.Errorf("...: %w", ...); handlers match with errors.Is to pick a status.
var (
	// ErrNotFound means a referenced entity is absent from the store
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateCode means a referral code is already taken (after normalization)
	ErrDuplicateCode = errors.New("referral code already in use")

	// ErrLinksExist blocks deleting a DSA that still owns referral links
	ErrLinksExist = errors.New("dsa still has referral links")

	// ErrTransactionAborted means an optimistic transaction lost a conflict;
	// the operation had no effect and can be retried
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrStoreUnavailable means the document store could not be reached;
	// callers must not assume partial writes occurred
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrValidation means the input was malformed before reaching the engine
	ErrValidation = errors.New("validation failed")
)
