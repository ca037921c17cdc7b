package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "newsletter-api/internal/transport/http/response"
)

// MaxBodyBytes 限制请求体大小；声明了超长 Content-Length 的请求直接 413
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, resp.Error(resp.CodeBadRequest, "request body too large"))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
