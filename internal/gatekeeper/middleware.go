package gatekeeper

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Context keys for values the gatekeeper exposes downstream.
const (
	// ContextClientAddr holds the resolved client address.
	ContextClientAddr = "clientAddr"

	// ContextTenantID holds the authenticated tenant ID.
	ContextTenantID = "tenantID"

	// ContextCredentialID holds the authenticated credential ID.
	ContextCredentialID = "credentialID"
)

// denialBody is the single external denial payload. It is precomputed so
// every denial response is byte-identical regardless of cause.
var denialBody = []byte(`{"error":"access denied"}`)

// ForwardedHeader is the forwarded-address chain header consulted by the
// middleware.
const ForwardedHeader = "X-Forwarded-For"

// Middleware returns a gin middleware that runs the gatekeeper pipeline
// and aborts denied requests with the uniform denial response. Allowed
// requests continue with the resolved client address, tenant ID, and
// credential ID available in the gin context.
func (g *Gatekeeper) Middleware(extractor CredentialExtractor, cost int64) gin.HandlerFunc {
	if extractor == nil {
		extractor = DefaultExtractor()
	}

	return func(c *gin.Context) {
		decision := g.Check(c.Request.Context(), Request{
			DirectAddr:     c.Request.RemoteAddr,
			ForwardedChain: c.Request.Header.Get(ForwardedHeader),
			Credential:     extractor.Extract(c.Request),
			Cost:           cost,
		})

		c.Set(ContextClientAddr, decision.ClientAddr)

		if !decision.Allowed {
			c.Data(http.StatusUnauthorized, "application/json; charset=utf-8", denialBody)
			c.Abort()
			return
		}

		c.Set(ContextTenantID, decision.Credential.TenantID)
		c.Set(ContextCredentialID, decision.Credential.ID)
		c.Next()
	}
}

// ClientAddr returns the resolved client address from the gin context,
// or "" when no gatekeeper middleware has run.
func ClientAddr(c *gin.Context) string {
	if addr, ok := c.Get(ContextClientAddr); ok {
		if s, ok := addr.(string); ok {
			return s
		}
	}
	return ""
}

// TenantID returns the authenticated tenant ID from the gin context.
func TenantID(c *gin.Context) string {
	if id, ok := c.Get(ContextTenantID); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
