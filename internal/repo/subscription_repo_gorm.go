package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"newsletter-api/internal/domain"
)

// SubscriptionRepo reads and writes user_newsletter rows.
type SubscriptionRepo struct{ db *gorm.DB }

func NewSubscriptionRepo(db *gorm.DB) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

func (r *SubscriptionRepo) ListByUser(ctx context.Context, userID uint) ([]domain.UserNewsletter, error) {
	var rows []domain.UserNewsletter
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error
	return rows, err
}

func (r *SubscriptionRepo) ListByNewsletter(ctx context.Context, newsletterID uint) ([]domain.UserNewsletter, error) {
	var rows []domain.UserNewsletter
	err := r.db.WithContext(ctx).Where("newsletter_id = ?", newsletterID).Find(&rows).Error
	return rows, err
}

// Insert ignores a row that already exists.
func (r *SubscriptionRepo) Insert(ctx context.Context, row domain.UserNewsletter) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (r *SubscriptionRepo) Delete(ctx context.Context, row domain.UserNewsletter) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND newsletter_id = ?", row.UserID, row.NewsletterID).
		Delete(&domain.UserNewsletter{}).Error
}
