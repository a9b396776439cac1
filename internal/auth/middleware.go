package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxClaimsKey = "auth_claims"

// bearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, code int, msg string) {
	if code == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Bearer realm="novelhub"`)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

// Middleware admits requests carrying a valid operator token and stores its
// claims on the context.
func Middleware(tokens TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := tokens.Parse(raw)
		switch {
		case errors.Is(err, ErrForbidden):
			abort(c, http.StatusForbidden, "forbidden")
			return
		case err != nil:
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Middleware, or nil.
func ClaimsFrom(c *gin.Context) *Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
