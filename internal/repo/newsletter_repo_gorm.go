package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"newsletter-api/internal/domain"
)

type NewsletterRepo struct{ db *gorm.DB }

func NewNewsletterRepo(db *gorm.DB) *NewsletterRepo { return &NewsletterRepo{db: db} }

func (r *NewsletterRepo) Create(ctx context.Context, n *domain.Newsletter) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *NewsletterRepo) FindByID(ctx context.Context, id uint) (*domain.Newsletter, error) {
	var n domain.Newsletter
	err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NewsletterRepo) ListByIDs(ctx context.Context, ids []uint) ([]domain.Newsletter, error) {
	out := []domain.Newsletter{}
	if len(ids) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&out).Error
	return out, err
}

func (r *NewsletterRepo) Update(ctx context.Context, n *domain.Newsletter) error {
	return r.db.WithContext(ctx).Save(n).Error
}
