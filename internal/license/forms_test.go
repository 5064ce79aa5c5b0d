package license

import "context"

// fetchByForms expands LookupForms into Fetch's two-argument signature.
func fetchByForms(ctx context.Context, store interface {
	Fetch(ctx context.Context, plaintext, digest string) (*Credential, error)
}, secret string) (*Credential, error) {
	plaintext, digest := LookupForms(secret)
	return store.Fetch(ctx, plaintext, digest)
}
