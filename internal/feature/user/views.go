package user

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"newsletter-api/internal/core/auth"
	"newsletter-api/internal/domain"
	"newsletter-api/internal/service"
	"newsletter-api/internal/transport/http/ez"
	"newsletter-api/pkg/utils"
)

const dateLayout = "2006-01-02"

// listView read:Users
type listView struct {
	ID        uint     `json:"id"`
	UUID      string   `json:"uuid"`
	Roles     []string `json:"roles"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
}

type newsletterRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// itemView read:Users + read:User
type itemView struct {
	ID          uint            `json:"id"`
	UUID        string          `json:"uuid"`
	Roles       []string        `json:"roles"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Address     *string         `json:"address"`
	ZipCode     *string         `json:"zipCode"`
	Country     *string         `json:"country"`
	PhoneNumber *string         `json:"phoneNumber"`
	Birthdate   *string         `json:"birthdate"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   *time.Time      `json:"updatedAt"`
	DeletedAt   *time.Time      `json:"deletedAt"`
	Newsletters []newsletterRef `json:"newsletters"`
}

// authView auth:User
type authView struct {
	ID   uint   `json:"id"`
	UUID string `json:"uuid"`
}

type createIn struct {
	UUID        string  `json:"uuid"        binding:"omitempty,uuid"`
	Password    string  `json:"password"    binding:"required,min=4,max=72"`
	FirstName   string  `json:"firstName"   binding:"required,min=2,max=50"`
	LastName    string  `json:"lastName"    binding:"required,min=2,max=100"`
	Address     *string `json:"address"     binding:"omitempty,max=150"`
	ZipCode     *string `json:"zipCode"     binding:"omitempty,zipcode"`
	Country     *string `json:"country"     binding:"omitempty,max=50"`
	PhoneNumber *string `json:"phoneNumber" binding:"omitempty,max=10,phone"`
	Birthdate   *string `json:"birthdate"   binding:"omitempty,datetime=2006-01-02"`
}

// updateIn put:User；没给的字段保持不变
type updateIn struct {
	FirstName   *string `json:"firstName"   binding:"omitempty,min=2,max=50"`
	LastName    *string `json:"lastName"    binding:"omitempty,min=2,max=100"`
	Address     *string `json:"address"     binding:"omitempty,max=150"`
	ZipCode     *string `json:"zipCode"     binding:"omitempty,zipcode"`
	Country     *string `json:"country"     binding:"omitempty,max=50"`
	PhoneNumber *string `json:"phoneNumber" binding:"omitempty,max=10,phone"`
	Birthdate   *string `json:"birthdate"   binding:"omitempty,datetime=2006-01-02"`
}

func toList(u *domain.User) listView {
	return listView{
		ID:        u.ID,
		UUID:      u.UUID,
		Roles:     auth.FromUser(u).Roles(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func toAuth(u *domain.User) authView { return authView{ID: u.ID, UUID: u.UUID} }

func toItem(c *gin.Context, subs *service.SubscriptionService, u *domain.User) (itemView, error) {
	ns, err := subs.NewslettersOf(c.Request.Context(), u.ID)
	if err != nil {
		return itemView{}, ez.Internal("load subscriptions failed", err)
	}
	refs := make([]newsletterRef, 0, len(ns))
	for _, n := range ns {
		refs = append(refs, newsletterRef{ID: n.ID, Name: n.Name})
	}
	v := itemView{
		ID:          u.ID,
		UUID:        u.UUID,
		Roles:       auth.FromUser(u).Roles(),
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Address:     u.Address,
		ZipCode:     u.ZipCode,
		Country:     u.Country,
		PhoneNumber: u.PhoneNumber,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		DeletedAt:   u.DeletedAt,
		Newsletters: refs,
	}
	if u.Birthdate != nil {
		s := u.Birthdate.Format(dateLayout)
		v.Birthdate = &s
	}
	return v, nil
}

func applyCreate(_ *gin.Context, u *domain.User, in *createIn) error {
	u.UUID = strings.TrimSpace(in.UUID)
	if u.UUID == "" {
		u.UUID = uuid.NewString()
	}
	u.Password = utils.HashPassword(in.Password)
	u.FirstName = in.FirstName
	u.LastName = in.LastName
	u.Address = in.Address
	u.ZipCode = in.ZipCode
	u.Country = in.Country
	u.PhoneNumber = in.PhoneNumber
	return setBirthdate(u, in.Birthdate)
}

func applyUpdate(_ *gin.Context, u *domain.User, in *updateIn) error {
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Address != nil {
		u.Address = in.Address
	}
	if in.ZipCode != nil {
		u.ZipCode = in.ZipCode
	}
	if in.Country != nil {
		u.Country = in.Country
	}
	if in.PhoneNumber != nil {
		u.PhoneNumber = in.PhoneNumber
	}
	if err := setBirthdate(u, in.Birthdate); err != nil {
		return err
	}
	u.Touch(time.Now().UTC())
	return nil
}

func setBirthdate(u *domain.User, s *string) error {
	if s == nil {
		return nil
	}
	d, err := time.Parse(dateLayout, *s)
	if err != nil {
		return ez.BadRequest("birthdate must be YYYY-MM-DD")
	}
	u.Birthdate = &d
	return nil
}
