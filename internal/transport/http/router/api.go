package router

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"newsletter-api/internal/core/server"
	"newsletter-api/internal/openapi"
	"newsletter-api/internal/repo"
	"newsletter-api/internal/service"
	"newsletter-api/internal/transport/http/ez"
	"newsletter-api/internal/transport/http/handler"
	mdw "newsletter-api/internal/transport/http/middleware"
	"newsletter-api/internal/transport/http/validate"
)

type loginIn struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginOut struct {
	Token string `json:"token"`
}

func NewAPIEngine(d Deps) (*gin.Engine, error) {
	if err := validate.Register(d.PhoneRegion); err != nil {
		return nil, err
	}
	r := server.NewRouter(d.Log)

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(16<<20),
		mdw.Timeout(10*time.Second),
		mdw.Metrics(),
		mdw.AccessLog(d.Log),
	)

	// 健康检查
	r.GET("/health", handler.Health)
	r.GET("/metrics", mdw.MetricsHandler())

	api := r.Group("/api")
	cat := ez.NewCatalog()

	// /login 按 IP 限速；文档由 openapi.Augment 补充
	mountLogin(api.Group("", mdw.RateLimitPerIP(5, 10)), d)

	api.POST("/logout", handler.Logout)
	cat.AddRaw(http.MethodPost, "/api/logout", http.StatusNoContent, ez.Doc{
		OperationID: "postApiLogout", Tags: []string{openapi.AuthenticationTag},
		Summary: "Ends the session. Always answers 204.",
	})

	// 鉴权分组：principal 只从 token 重建
	authed := api.Group("", mdw.AuthJWT(d.JWT, ""))
	Modules(d).MountAPI(ez.New(authed).WithCatalog(cat))

	doc, err := openapi.Build(docTitle, docVersion, cat)
	if err != nil {
		return nil, err
	}
	docs, err := handler.Docs(doc)
	if err != nil {
		return nil, err
	}
	api.GET("/docs.json", docs)

	return r, nil
}

func mountLogin(g *gin.RouterGroup, d Deps) {
	svc := service.NewAuthService(repo.NewUserRepo(d.DB), d.JWT)
	ez.RegisterAction(ez.New(g), d.DB, ez.Action[loginIn, loginOut]{
		Method: http.MethodPost,
		Path:   "/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *loginIn) (loginOut, error) {
			tok, err := svc.Login(c.Request.Context(), in.Username, in.Password)
			if errors.Is(err, service.ErrInvalidCredentials) {
				return loginOut{}, ez.Unauthorized("Invalid credentials.")
			}
			if err != nil {
				return loginOut{}, ez.Internal("login failed", err)
			}
			return loginOut{Token: tok}, nil
		},
	})
}
