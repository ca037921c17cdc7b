package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"newsletter-api/internal/domain"
	"newsletter-api/internal/repo"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrNewsletterNotFound = errors.New("newsletter not found")
)

// SubscriptionService persists changes made through domain.Subscriptions.
// Each mutation loads the caller's side of the relation, applies it in memory
// and writes the resulting row delta in the same transaction.
type SubscriptionService struct {
	db *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// Subscribe reports whether a new subscription was stored.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, newsletterID uint) (bool, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subs, set, u, n, err := s.load(ctx, tx, userID, newsletterID)
		if err != nil {
			return err
		}
		added, err := set.Link(u, n)
		if err != nil || !added {
			return err
		}
		changed = true
		return subs.Insert(ctx, domain.UserNewsletter{UserID: userID, NewsletterID: newsletterID})
	})
	return changed, err
}

// Unsubscribe reports whether a subscription was removed.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID, newsletterID uint) (bool, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subs, set, u, n, err := s.load(ctx, tx, userID, newsletterID)
		if err != nil {
			return err
		}
		removed, err := set.Unlink(u, n)
		if err != nil || !removed {
			return err
		}
		changed = true
		return subs.Delete(ctx, domain.UserNewsletter{UserID: userID, NewsletterID: newsletterID})
	})
	return changed, err
}

func (s *SubscriptionService) load(ctx context.Context, tx *gorm.DB, userID, newsletterID uint) (*repo.SubscriptionRepo, *domain.Subscriptions, *domain.User, *domain.Newsletter, error) {
	u, err := repo.NewUserRepo(tx).FindByID(ctx, userID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if u == nil {
		return nil, nil, nil, nil, ErrUserNotFound
	}
	n, err := repo.NewNewsletterRepo(tx).FindByID(ctx, newsletterID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if n == nil {
		return nil, nil, nil, nil, ErrNewsletterNotFound
	}

	subs := repo.NewSubscriptionRepo(tx)
	rows, err := subs.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	set := domain.NewSubscriptions()
	set.Load(rows)
	return subs, set, u, n, nil
}

// DetachUser removes every subscription of userID and reports how many rows
// went away. tx is the caller's transaction; nil uses the service's db.
func (s *SubscriptionService) DetachUser(ctx context.Context, tx *gorm.DB, userID uint) (int, error) {
	if tx == nil {
		tx = s.db
	}
	subs := repo.NewSubscriptionRepo(tx)
	rows, err := subs.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	set := domain.NewSubscriptions()
	set.Load(rows)
	before := set.Len()
	gone := set.NewslettersOf(userID)
	set.DetachUser(userID)
	for _, n := range gone {
		if err := subs.Delete(ctx, domain.UserNewsletter{UserID: userID, NewsletterID: n}); err != nil {
			return 0, err
		}
	}
	return before - set.Len(), nil
}

// DetachNewsletter removes every subscriber of newsletterID.
func (s *SubscriptionService) DetachNewsletter(ctx context.Context, tx *gorm.DB, newsletterID uint) (int, error) {
	if tx == nil {
		tx = s.db
	}
	subs := repo.NewSubscriptionRepo(tx)
	rows, err := subs.ListByNewsletter(ctx, newsletterID)
	if err != nil {
		return 0, err
	}
	set := domain.NewSubscriptions()
	set.Load(rows)
	before := set.Len()
	gone := set.SubscribersOf(newsletterID)
	set.DetachNewsletter(newsletterID)
	for _, u := range gone {
		if err := subs.Delete(ctx, domain.UserNewsletter{UserID: u, NewsletterID: newsletterID}); err != nil {
			return 0, err
		}
	}
	return before - set.Len(), nil
}

// NewslettersOf lists the newsletters userID is subscribed to, by id.
func (s *SubscriptionService) NewslettersOf(ctx context.Context, userID uint) ([]domain.Newsletter, error) {
	rows, err := repo.NewSubscriptionRepo(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := domain.NewSubscriptions()
	set.Load(rows)
	return repo.NewNewsletterRepo(s.db).ListByIDs(ctx, set.NewslettersOf(userID))
}

// SubscribersOf lists the users subscribed to newsletterID, by id.
func (s *SubscriptionService) SubscribersOf(ctx context.Context, newsletterID uint) ([]domain.User, error) {
	n, err := repo.NewNewsletterRepo(s.db).FindByID(ctx, newsletterID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNewsletterNotFound
	}
	rows, err := repo.NewSubscriptionRepo(s.db).ListByNewsletter(ctx, newsletterID)
	if err != nil {
		return nil, err
	}
	set := domain.NewSubscriptions()
	set.Load(rows)
	return repo.NewUserRepo(s.db).ListByIDs(ctx, set.SubscribersOf(newsletterID))
}
