package domain

import "time"

type Newsletter struct {
	ID          uint       `gorm:"primaryKey;column:id"`
	Name        string     `gorm:"column:name;size:255;not null"`
	Subject     string     `gorm:"column:subject;size:150;not null"`
	HTMLContent string     `gorm:"column:html_content;type:text;not null"`
	Type        string     `gorm:"column:type;size:50;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime:false;<-:create"`
	UpdatedAt   *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
	DeletedAt   *time.Time `gorm:"column:deleted_at"`
}

func (Newsletter) TableName() string { return "newsletter" }

func NewNewsletter(now time.Time) *Newsletter {
	return &Newsletter{CreatedAt: now}
}

func (n *Newsletter) GetID() uint { return n.ID }

func (n *Newsletter) Touch(now time.Time) { n.UpdatedAt = &now }

func (n *Newsletter) SoftDelete(now time.Time) { n.DeletedAt = &now }

func (n *Newsletter) IsDeleted() bool { return n.DeletedAt != nil }

// UserNewsletter is one row of the join table.
type UserNewsletter struct {
	UserID       uint `gorm:"primaryKey;column:user_id;autoIncrement:false"`
	NewsletterID uint `gorm:"primaryKey;column:newsletter_id;autoIncrement:false"`
}

func (UserNewsletter) TableName() string { return "user_newsletter" }
