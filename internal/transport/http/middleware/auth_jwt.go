package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"newsletter-api/internal/core/auth"
	resp "newsletter-api/internal/transport/http/response"
)

const (
	KeyClaims    = "claims"
	KeyPrincipal = "principal"
)

// AuthJWT 校验 Bearer token；principal 只从 token 重建，不查库
func AuthJWT(j *auth.JWTer, requireRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, "missing token"))
			return
		}
		claims, err := j.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, "invalid token"))
			return
		}
		if requireRole != "" && !claims.HasRole(requireRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, resp.Error(resp.CodeForbidden, "forbidden"))
			return
		}
		c.Set(KeyClaims, claims)
		c.Set(KeyPrincipal, auth.FromToken(claims.UID, claims))
		c.Next()
	}
}

func Claims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(KeyClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

func CurrentPrincipal(c *gin.Context) *auth.Principal {
	v, ok := c.Get(KeyPrincipal)
	if !ok {
		return nil
	}
	p, _ := v.(*auth.Principal)
	return p
}
