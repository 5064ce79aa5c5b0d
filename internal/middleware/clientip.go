package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/authgate/internal/gatekeeper"
)

// ClientIP returns a middleware that resolves the real client address
// for routes the gatekeeper does not cover (health, metrics, public
// endpoints) so access logs carry the same address the gatekeeper would
// use. The resolver snapshot is read through the gatekeeper so reloads
// apply here too.
func ClientIP(gk *gatekeeper.Gatekeeper) gin.HandlerFunc {
	return func(c *gin.Context) {
		if gatekeeper.ClientAddr(c) == "" {
			addr := gk.ResolveClientAddr(
				c.Request.RemoteAddr,
				c.Request.Header.Get(gatekeeper.ForwardedHeader),
			)
			c.Set(gatekeeper.ContextClientAddr, addr)
		}
		c.Next()
	}
}
