package license

import "errors"

// Common errors for license credential handling. The gatekeeper collapses
// all of these into one generic denial at the boundary; the distinctions
// exist for operator logs and the store's decrement contract only.
var (
	// ErrCredentialNotFound indicates no stored credential matched.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialInvalid indicates the presented secret did not verify.
	ErrCredentialInvalid = errors.New("credential invalid")

	// ErrCredentialInactive indicates the credential is disabled.
	ErrCredentialInactive = errors.New("credential inactive")

	// ErrCredentialExpired indicates the credential has expired.
	ErrCredentialExpired = errors.New("credential expired")

	// ErrInsufficientBalance indicates the remaining allowance is exhausted.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrEmptyCredential indicates no credential was presented.
	ErrEmptyCredential = errors.New("credential is empty")

	// ErrStoreUnavailable indicates a transient credential store failure.
	// It is surfaced once per call and never retried internally.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)
