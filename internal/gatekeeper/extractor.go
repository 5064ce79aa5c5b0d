package gatekeeper

import (
	"net/http"
	"strings"
)

// CredentialExtractor pulls a presented license key out of an HTTP
// request. Extraction failures are not errors here: an absent credential
// simply enters the pipeline empty and is denied uniformly.
type CredentialExtractor interface {
	Extract(r *http.Request) string
}

// HeaderExtractor reads the key from a header, optionally stripping a
// scheme prefix such as "Bearer ".
type HeaderExtractor struct {
	header string
	prefix string
}

// NewHeaderExtractor creates a header extractor. An empty header name
// defaults to "X-API-Key".
func NewHeaderExtractor(header, prefix string) *HeaderExtractor {
	if header == "" {
		header = "X-API-Key"
	}
	return &HeaderExtractor{header: header, prefix: prefix}
}

// Extract returns the key or "" when absent.
func (e *HeaderExtractor) Extract(r *http.Request) string {
	value := r.Header.Get(e.header)
	if value == "" {
		return ""
	}
	if e.prefix != "" {
		if !strings.HasPrefix(value, e.prefix) {
			return ""
		}
		value = strings.TrimPrefix(value, e.prefix)
	}
	return strings.TrimSpace(value)
}

// CompositeExtractor tries extractors in order, first hit wins.
type CompositeExtractor struct {
	extractors []CredentialExtractor
}

// NewCompositeExtractor creates a composite extractor.
func NewCompositeExtractor(extractors ...CredentialExtractor) *CompositeExtractor {
	return &CompositeExtractor{extractors: extractors}
}

// Extract returns the first non-empty key found.
func (e *CompositeExtractor) Extract(r *http.Request) string {
	for _, extractor := range e.extractors {
		if key := extractor.Extract(r); key != "" {
			return key
		}
	}
	return ""
}

// DefaultExtractor accepts "Authorization: Bearer <key>" and falls back
// to "X-API-Key".
func DefaultExtractor() CredentialExtractor {
	return NewCompositeExtractor(
		NewHeaderExtractor("Authorization", "Bearer "),
		NewHeaderExtractor("X-API-Key", ""),
	)
}
