package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Logout 令牌无状态，服务端无需清理；不读请求体，也不看是否登录
func Logout(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
