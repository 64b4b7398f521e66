package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Methods":  "GET,POST,PATCH,DELETE,OPTIONS",
	"Access-Control-Allow-Headers":  "Content-Type, Authorization, X-Request-Id",
	"Access-Control-Expose-Headers": "X-Request-Id, Content-Disposition",
	"Access-Control-Max-Age":        "600",
}

// corsPolicy is the set of allowed origins. "*" allows any origin but then
// credentials are not advertised.
type corsPolicy struct {
	any     bool
	origins map[string]struct{}
}

func newCORSPolicy(allowed []string) corsPolicy {
	p := corsPolicy{origins: make(map[string]struct{}, len(allowed))}
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[o] = struct{}{}
		}
	}
	return p
}

func (p corsPolicy) allows(origin string) (allowed, credentials bool) {
	if _, ok := p.origins[origin]; ok {
		return true, true
	}
	return p.any, false
}

// CORS echoes allowed origins and answers every preflight with 204.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	policy := newCORSPolicy(allowedOrigins)

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if ok, creds := policy.allows(origin); ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				if creds {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				for k, v := range corsHeaders {
					h.Set(k, v)
				}
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
