// Package user exposes the User resource and its subscription routes.
package user

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"newsletter-api/internal/domain"
	"newsletter-api/internal/repo"
	"newsletter-api/internal/service"
	"newsletter-api/internal/transport/http/ez"
	mdw "newsletter-api/internal/transport/http/middleware"
)

type Module struct {
	DB   *gorm.DB
	Subs *service.SubscriptionService
}

func New(db *gorm.DB, subs *service.SubscriptionService) *Module {
	return &Module{DB: db, Subs: subs}
}

func (m *Module) Priority() int { return 10 }

func (m *Module) Resource() *ez.Resource[domain.User] {
	return &ez.Resource[domain.User]{
		Name:        "User",
		Path:        "/users",
		Description: "Newsletter readers. The username used to log in is the uuid.",
		Role:        domain.RoleUser,
		PageSize:    ez.DefaultPageSize,
		Filters: []ez.Filter{
			{Param: "id", Column: "id", Match: ez.Exact},
			{Param: "firstName", Column: "first_name", Match: ez.Partial},
			{Param: "lastName", Column: "last_name", Match: ez.Partial},
		},
		List: ez.Render("User-read.Users", toList),
		Item: ez.RenderCtx("User-read.Users.read.User", func(c *gin.Context, u *domain.User) (itemView, error) {
			return toItem(c, m.Subs, u)
		}),
		Created: ez.Render("User-auth.User", toAuth),
		Create:  ez.Bind("User-post", applyCreate),
		Update:  ez.Bind("User-put.User", applyUpdate),
		Delete:  true,
		New:     domain.NewUser,
		BeforeDelete: func(c *gin.Context, tx *gorm.DB, id uint) error {
			if _, err := m.Subs.DetachUser(c.Request.Context(), tx, id); err != nil {
				return ez.Internal("detach subscriptions failed", err)
			}
			return nil
		},
	}
}

func (m *Module) MountAPI(e ez.EZ) {
	m.Resource().Mount(e, m.DB)

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, itemView]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Roles:  []string{domain.RoleUser},
		Doc: &ez.Doc{
			OperationID: "getMe", Tags: []string{"User"},
			Summary: "Retrieves the authenticated user.", Response: "User-read.Users.read.User",
		},
		Handler: func(c *gin.Context, tx *gorm.DB, _ *struct{}) (itemView, error) {
			p := mdw.CurrentPrincipal(c)
			if p == nil {
				return itemView{}, ez.Unauthorized("unauthorized")
			}
			u, err := repo.NewUserRepo(tx).FindByID(c.Request.Context(), p.ID)
			if err != nil {
				return itemView{}, ez.Internal("load user failed", err)
			}
			if u == nil {
				return itemView{}, ez.NotFound("User not found")
			}
			return toItem(c, m.Subs, u)
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, ez.NoContent]{
		Method: http.MethodPut,
		Path:   "/users/:id/newsletters/:newsletterId",
		Binder: ez.BindNone,
		Auth:   true,
		Roles:  []string{domain.RoleUser},
		Doc: &ez.Doc{
			OperationID: "putUserNewsletterItem", Tags: []string{"User"},
			Summary: "Subscribes the user to a newsletter.",
		},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (ez.NoContent, error) {
			uid, nid, err := pairParams(c)
			if err != nil {
				return ez.NoContent{}, err
			}
			_, err = m.Subs.Subscribe(c.Request.Context(), uid, nid)
			return ez.NoContent{}, subsErr(err)
		},
	})

	ez.RegisterAction(e, m.DB, ez.Action[struct{}, ez.NoContent]{
		Method: http.MethodDelete,
		Path:   "/users/:id/newsletters/:newsletterId",
		Binder: ez.BindNone,
		Auth:   true,
		Roles:  []string{domain.RoleUser},
		Doc: &ez.Doc{
			OperationID: "deleteUserNewsletterItem", Tags: []string{"User"},
			Summary: "Unsubscribes the user from a newsletter.",
		},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (ez.NoContent, error) {
			uid, nid, err := pairParams(c)
			if err != nil {
				return ez.NoContent{}, err
			}
			_, err = m.Subs.Unsubscribe(c.Request.Context(), uid, nid)
			return ez.NoContent{}, subsErr(err)
		},
	})
}

type archived struct {
	ID        uint       `json:"id"`
	DeletedAt *time.Time `json:"deletedAt"`
}

// MountAdmin 软删：只写 deleted_at，读接口不做过滤
func (m *Module) MountAdmin(e ez.EZ) {
	ez.RegisterAction(e, m.DB, ez.Action[struct{}, archived]{
		Method: http.MethodPost,
		Path:   "/users/:id/archive",
		Binder: ez.BindNone,
		Auth:   true,
		Roles:  []string{domain.RoleAdmin},
		UseTx:  true,
		Doc: &ez.Doc{
			OperationID: "archiveUserItem", Tags: []string{"Admin"},
			Summary: "Marks the user as deleted.",
		},
		Handler: func(c *gin.Context, tx *gorm.DB, _ *struct{}) (archived, error) {
			id, err := ez.IDParam(c, "id")
			if err != nil {
				return archived{}, err
			}
			users := repo.NewUserRepo(tx)
			u, err := users.FindByID(c.Request.Context(), id)
			if err != nil {
				return archived{}, ez.Internal("load user failed", err)
			}
			if u == nil {
				return archived{}, ez.NotFound("User not found")
			}
			if !u.IsDeleted() {
				now := time.Now().UTC()
				u.SoftDelete(now)
				u.Touch(now)
				if err := users.Update(c.Request.Context(), u); err != nil {
					return archived{}, ez.Internal("archive user failed", err)
				}
			}
			return archived{ID: u.ID, DeletedAt: u.DeletedAt}, nil
		},
	})
}

func pairParams(c *gin.Context) (uint, uint, error) {
	uid, err := ez.IDParam(c, "id")
	if err != nil {
		return 0, 0, err
	}
	nid, err := ez.IDParam(c, "newsletterId")
	if err != nil {
		return 0, 0, err
	}
	return uid, nid, nil
}

func subsErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrUserNotFound):
		return ez.NotFound("User not found")
	case errors.Is(err, service.ErrNewsletterNotFound):
		return ez.NotFound("Newsletter not found")
	default:
		return ez.Internal("subscription failed", err)
	}
}
