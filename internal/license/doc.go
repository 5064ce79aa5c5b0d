// Package license implements license-key hashing, verification, and
// storage for tenant credentials.
//
// Stored credentials exist in three forms: a sha256 digest carrying the
// "sha256:" marker (the current scheme), a bcrypt digest from the earlier
// scheme, or legacy plaintext. Verify handles all three so plaintext rows
// keep working while rotated keys are persisted digest-only; there is no
// sunset for the plaintext path. All comparisons use constant-time
// primitives so validity never leaks through timing.
package license
