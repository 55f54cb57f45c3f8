package middleware

import (
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	ContextRequestID = "requestID"
	ContextPrincipal = "principal"

	HeaderRequestID = "X-Request-ID"
)

func RequestIDFrom(c *gin.Context) string {
	return c.GetString(ContextRequestID)
}

// PrincipalFrom returns the identity set by Authenticate.
func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}
