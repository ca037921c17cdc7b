package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"newsletter-api/internal/core/server"
	"newsletter-api/internal/domain"
	"newsletter-api/internal/openapi"
	"newsletter-api/internal/transport/http/ez"
	"newsletter-api/internal/transport/http/handler"
	mdw "newsletter-api/internal/transport/http/middleware"
)

func NewAdminEngine(d Deps) (*gin.Engine, error) {
	r := server.NewRouter(d.Log)

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

	// 管理端 v1（统一要求 admin 角色）
	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(d.JWT, domain.RoleAdmin))

	cat := ez.NewCatalog()
	Modules(d).MountAdmin(ez.New(admin).WithCatalog(cat))

	doc, err := openapi.Build(docTitle+" admin", docVersion, cat)
	if err != nil {
		return nil, err
	}
	docs, err := handler.Docs(doc)
	if err != nil {
		return nil, err
	}
	r.GET("/admin/docs.json", docs)

	return r, nil
}
