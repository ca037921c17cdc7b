package domain

import (
	"context"
	"time"
)

// RoleUser is granted to every authenticated user whether or not it is stored.
const RoleUser = "ROLE_USER"

// RoleAdmin unlocks the admin surface.
const RoleAdmin = "ROLE_ADMIN"

type User struct {
	ID          uint       `gorm:"primaryKey;column:id"`
	UUID        string     `gorm:"column:uuid;size:180;uniqueIndex;not null"`
	Roles       []string   `gorm:"column:roles;serializer:json;not null"` // 仅存储的角色，不含 ROLE_USER
	Password    string     `gorm:"column:password;size:255;not null"`     // bcrypt hash
	FirstName   string     `gorm:"column:first_name;size:50;not null"`
	LastName    string     `gorm:"column:last_name;size:100;not null"`
	Address     *string    `gorm:"column:address;size:150"`
	ZipCode     *string    `gorm:"column:zip_code;size:5"`
	Country     *string    `gorm:"column:country;size:50"`
	PhoneNumber *string    `gorm:"column:phone_number;size:10"`
	Birthdate   *time.Time `gorm:"column:birthdate;type:date"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime:false;<-:create"`
	UpdatedAt   *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
	DeletedAt   *time.Time `gorm:"column:deleted_at"`
}

func (User) TableName() string { return "user" }

// NewUser fixes CreatedAt; it is written on insert only and never updated.
func NewUser(now time.Time) *User {
	return &User{Roles: []string{}, CreatedAt: now}
}

func (u *User) GetID() uint { return u.ID }

func (u *User) Touch(now time.Time) { u.UpdatedAt = &now }

// SoftDelete marks the row deleted. Reads do not filter on it.
func (u *User) SoftDelete(now time.Time) { u.DeletedAt = &now }

func (u *User) IsDeleted() bool { return u.DeletedAt != nil }

// UserRepository lookups return (nil, nil) when no row matches.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id uint) (*User, error)
	FindByUUID(ctx context.Context, uuid string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uint) error
}
