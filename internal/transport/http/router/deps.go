package router

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"newsletter-api/internal/core/auth"
	"newsletter-api/internal/core/cache"
	"newsletter-api/internal/feature/newsletter"
	"newsletter-api/internal/feature/user"
	"newsletter-api/internal/service"
)

const (
	docTitle   = "newsletter-api"
	docVersion = "1.0.0"
)

type Deps struct {
	Log         *zap.Logger
	DB          *gorm.DB
	JWT         *auth.JWTer
	Cache       *cache.Cache // 可为 nil
	CacheTTL    time.Duration
	PhoneRegion string
}

// Modules 所有业务模块
func Modules(d Deps) *Registry {
	subs := service.NewSubscriptionService(d.DB)
	return NewRegistry(
		user.New(d.DB, subs),
		newsletter.New(d.DB, subs, d.Cache, d.CacheTTL),
	)
}
