// Package handler holds the plain gin handlers that do not go through ez.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
)

// Docs 文档在启动时生成一次，这里只输出缓存好的字节
func Docs(doc *openapi3.T) (gin.HandlerFunc, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", b)
	}, nil
}

func Health(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) }
