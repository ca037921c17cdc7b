package ez

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	mdw "newsletter-api/internal/transport/http/middleware"
	resp "newsletter-api/internal/transport/http/response"
)

// EZ 对 gin.RouterGroup 的轻封装；cat 不为空时注册的 Action 会写进 API 文档
type EZ struct {
	g   *gin.RouterGroup
	cat *Catalog
}

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

func (e EZ) WithCatalog(cat *Catalog) EZ { e.cat = cat; return e }

type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

// NoContent 作为出参时响应 204 且无 body
type NoContent struct{}

// Action 非 CRUD 接口的一行注册：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string
	Path    string
	Binder  Binder
	Auth    bool     // 是否要求登录（需要 AuthJWT 已挂在分组上）
	Roles   []string // 任一即可
	UseTx   bool     // 是否包事务
	Status  int      // 成功状态码，默认 200
	Doc     *Doc     // 为空则不进文档
	Handler func(c *gin.Context, db *gorm.DB, in *I) (O, error)
	// Committed Handler 成功（UseTx 时为提交之后）再执行
	Committed func(c *gin.Context, out O)
}

func RegisterAction[I any, O any](e EZ, db *gorm.DB, a Action[I, O]) {
	h := func(c *gin.Context) {
		if a.Auth {
			claims := mdw.Claims(c)
			if claims == nil {
				WriteError(c, Unauthorized("unauthorized"))
				return
			}
			if len(a.Roles) > 0 && !anyRole(claims.Roles, a.Roles) {
				WriteError(c, Forbidden("forbidden"))
				return
			}
		}

		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			WriteError(c, BadRequest(bindErr.Error()))
			return
		}

		var out O
		var err error
		if a.UseTx {
			err = db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
				o, e := a.Handler(c, tx, &in)
				out = o
				return e
			})
		} else {
			out, err = a.Handler(c, db.WithContext(c.Request.Context()), &in)
		}
		if err != nil {
			WriteError(c, err)
			return
		}
		if a.Committed != nil {
			a.Committed(c, out)
		}

		if _, empty := any(out).(NoContent); empty {
			c.Status(http.StatusNoContent)
			return
		}
		status := a.Status
		if status == 0 {
			status = http.StatusOK
		}
		c.JSON(status, resp.OK(out))
	}

	method := strings.ToUpper(a.Method)
	if method == "" {
		method = http.MethodPost
	}
	e.g.Handle(method, a.Path, h)

	if a.Doc != nil && e.cat != nil {
		var inSample any
		if a.Binder == BindJSON {
			inSample = new(I)
		}
		var outSample any
		if _, empty := any(*new(O)).(NoContent); !empty {
			outSample = new(O)
		}
		e.cat.add(route{
			method: method,
			path:   joinPath(e.g.BasePath(), a.Path),
			secure: a.Auth,
			status: a.Status,
			doc:    *a.Doc,
			in:     inSample,
			out:    outSample,
		})
	}
}

func anyRole(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
