package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	resp "newsletter-api/internal/transport/http/response"
)

// AErr 统一错误对象，Code 即 HTTP 状态码
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: http.StatusBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: http.StatusUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: http.StatusForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: http.StatusNotFound, Msg: msg} }
func Conflict(msg string) error     { return &AErr{Code: http.StatusConflict, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Code: http.StatusInternalServerError, Msg: msg, Err: err}
}

// WriteError 是唯一的错误出口；5xx 的原因挂到 c.Errors 由 AccessLog 打印
func WriteError(c *gin.Context, err error) {
	var ae *AErr
	if !errors.As(err, &ae) {
		ae = &AErr{Code: http.StatusInternalServerError, Msg: "internal error", Err: err}
	}
	if ae.Code >= http.StatusInternalServerError && ae.Err != nil {
		_ = c.Error(ae.Err)
	}
	c.AbortWithStatusJSON(resp.Status(ae.Code), resp.Error(ae.Code, ae.Error()))
}

func isDupKey(err error) bool {
	// 不依赖 gorm.ErrDuplicatedKey（需要开启 TranslateError）
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
