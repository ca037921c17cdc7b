// Package newsletter exposes the Newsletter resource.
package newsletter

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"newsletter-api/internal/core/cache"
	"newsletter-api/internal/domain"
	"newsletter-api/internal/repo"
	"newsletter-api/internal/service"
	"newsletter-api/internal/transport/http/ez"
)

type view struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Subject     string     `json:"subject"`
	HTMLContent string     `json:"htmlContent"`
	Type        string     `json:"type"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt"`
}

type writeIn struct {
	Name        string `json:"name"        binding:"required,max=255"`
	Subject     string `json:"subject"     binding:"required,max=150"`
	HTMLContent string `json:"htmlContent" binding:"required"`
	Type        string `json:"type"        binding:"required,max=50"`
}

type subscriber struct {
	ID   uint   `json:"id"`
	UUID string `json:"uuid"`
}

func toView(n *domain.Newsletter) view {
	return view{
		ID:          n.ID,
		Name:        n.Name,
		Subject:     n.Subject,
		HTMLContent: n.HTMLContent,
		Type:        n.Type,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
		DeletedAt:   n.DeletedAt,
	}
}

type Module struct {
	DB    *gorm.DB
	Subs  *service.SubscriptionService
	Cache *cache.Cache // nil 时不缓存
	TTL   time.Duration
}

func New(db *gorm.DB, subs *service.SubscriptionService, c *cache.Cache, ttl time.Duration) *Module {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Module{DB: db, Subs: subs, Cache: c, TTL: ttl}
}

func (m *Module) Priority() int { return 20 }

func cacheKey(id uint) string { return "newsletter:" + strconv.FormatUint(uint64(id), 10) }

// load 单条读取走缓存
func (m *Module) load(ctx context.Context, db *gorm.DB, id uint) (*domain.Newsletter, error) {
	return cache.GetOrLoadJSON(m.Cache, ctx, cacheKey(id), m.TTL, func(ctx context.Context) (*domain.Newsletter, error) {
		return repo.NewNewsletterRepo(db).FindByID(ctx, id)
	})
}

func (m *Module) invalidate(ctx context.Context, id uint) {
	// 失效失败只会读到旧值直到 TTL 过期
	_ = m.Cache.Invalidate(ctx, cacheKey(id))
}

func (m *Module) Resource() *ez.Resource[domain.Newsletter] {
	apply := func(_ *gin.Context, n *domain.Newsletter, in *writeIn) error {
		n.Name = in.Name
		n.Subject = in.Subject
		n.HTMLContent = in.HTMLContent
		n.Type = in.Type
		return nil
	}
	return &ez.Resource[domain.Newsletter]{
		Name:    "Newsletter",
		Path:    "/newsletters",
		Role:    domain.RoleUser,
		Filters: []ez.Filter{{Param: "name", Column: "name", Match: ez.Partial}, {Param: "type", Column: "type", Match: ez.Exact}},
		List:    ez.Render("Newsletter", toView),
		Item:    ez.Render("Newsletter", toView),
		Create:  ez.Bind("Newsletter-write", apply),
		Update: ez.Bind("Newsletter-write", func(c *gin.Context, n *domain.Newsletter, in *writeIn) error {
			n.Touch(time.Now().UTC())
			return apply(c, n, in)
		}),
		Delete: true,
		New:    domain.NewNewsletter,
		Load:   m.load,
		BeforeDelete: func(c *gin.Context, tx *gorm.DB, id uint) error {
			if _, err := m.Subs.DetachNewsletter(c.Request.Context(), tx, id); err != nil {
				return ez.Internal("detach subscribers failed", err)
			}
			return nil
		},
		// 提交后再清，避免并发读把旧行写回缓存
		Committed: func(c *gin.Context, id uint) { m.invalidate(c.Request.Context(), id) },
	}
}

func (m *Module) MountAPI(e ez.EZ) {
	m.Resource().Mount(e, m.DB)

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, []subscriber]{
		Method: http.MethodGet,
		Path:   "/newsletters/:id/subscribers",
		Binder: ez.BindNone,
		Auth:   true,
		Roles:  []string{domain.RoleUser},
		Doc: &ez.Doc{
			OperationID: "getNewsletterSubscribers", Tags: []string{"Newsletter"},
			Summary: "Lists the users subscribed to the newsletter.",
		},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) ([]subscriber, error) {
			id, err := ez.IDParam(c, "id")
			if err != nil {
				return nil, err
			}
			users, err := m.Subs.SubscribersOf(c.Request.Context(), id)
			if errors.Is(err, service.ErrNewsletterNotFound) {
				return nil, ez.NotFound("Newsletter not found")
			}
			if err != nil {
				return nil, ez.Internal("load subscribers failed", err)
			}
			out := make([]subscriber, 0, len(users))
			for _, u := range users {
				out = append(out, subscriber{ID: u.ID, UUID: u.UUID})
			}
			return out, nil
		},
	})
}

func (m *Module) MountAdmin(e ez.EZ) {
	ez.RegisterAction(e, m.DB, ez.Action[struct{}, view]{
		Method: http.MethodPost,
		Path:   "/newsletters/:id/archive",
		Binder: ez.BindNone,
		Auth:   true,
		Roles:  []string{domain.RoleAdmin},
		UseTx:  true,
		Doc: &ez.Doc{
			OperationID: "archiveNewsletterItem", Tags: []string{"Admin"},
			Summary: "Marks the newsletter as deleted.", Response: "Newsletter",
		},
		Handler: func(c *gin.Context, tx *gorm.DB, _ *struct{}) (view, error) {
			id, err := ez.IDParam(c, "id")
			if err != nil {
				return view{}, err
			}
			news := repo.NewNewsletterRepo(tx)
			n, err := news.FindByID(c.Request.Context(), id)
			if err != nil {
				return view{}, ez.Internal("load newsletter failed", err)
			}
			if n == nil {
				return view{}, ez.NotFound("Newsletter not found")
			}
			if !n.IsDeleted() {
				now := time.Now().UTC()
				n.SoftDelete(now)
				n.Touch(now)
				if err := news.Update(c.Request.Context(), n); err != nil {
					return view{}, ez.Internal("archive newsletter failed", err)
				}
			}
			return toView(n), nil
		},
		Committed: func(c *gin.Context, out view) { m.invalidate(c.Request.Context(), out.ID) },
	})
}
