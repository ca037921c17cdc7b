package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptions_AddIsSymmetric(t *testing.T) {
	s := NewSubscriptions()

	assert.True(t, s.Add(1, 10))
	assert.True(t, s.Has(1, 10))
	assert.Equal(t, []uint{10}, s.NewslettersOf(1))
	assert.Equal(t, []uint{1}, s.SubscribersOf(10))
}

func TestSubscriptions_AddIsIdempotent(t *testing.T) {
	s := NewSubscriptions()

	assert.True(t, s.Add(1, 10))
	assert.False(t, s.Add(1, 10))

	assert.Equal(t, []uint{10}, s.NewslettersOf(1))
	assert.Equal(t, []uint{1}, s.SubscribersOf(10))
	assert.Equal(t, 1, s.Len())
}

func TestSubscriptions_RemoveDetachesBothSides(t *testing.T) {
	s := NewSubscriptions()
	s.Add(1, 10)
	s.Add(1, 11)
	s.Add(2, 10)

	assert.True(t, s.Remove(1, 10))
	assert.False(t, s.Has(1, 10))
	assert.Equal(t, []uint{11}, s.NewslettersOf(1))
	assert.Equal(t, []uint{2}, s.SubscribersOf(10))

	// second remove is a no-op
	assert.False(t, s.Remove(1, 10))
	assert.Equal(t, []uint{11}, s.NewslettersOf(1))
	assert.Equal(t, []uint{2}, s.SubscribersOf(10))
}

func TestSubscriptions_RemoveAbsent(t *testing.T) {
	s := NewSubscriptions()
	assert.False(t, s.Remove(7, 8))
	assert.Empty(t, s.NewslettersOf(7))
	assert.Empty(t, s.SubscribersOf(8))
}

func TestSubscriptions_ZeroIDsIgnored(t *testing.T) {
	s := NewSubscriptions()
	assert.False(t, s.Add(0, 10))
	assert.False(t, s.Add(1, 0))
	assert.Equal(t, 0, s.Len())
}

func TestSubscriptions_Detach(t *testing.T) {
	s := NewSubscriptions()
	s.Load([]UserNewsletter{
		{UserID: 1, NewsletterID: 10},
		{UserID: 1, NewsletterID: 11},
		{UserID: 2, NewsletterID: 10},
		{UserID: 2, NewsletterID: 10},
	})
	assert.Equal(t, 3, s.Len())

	s.DetachNewsletter(10)
	assert.Equal(t, []uint{11}, s.NewslettersOf(1))
	assert.Empty(t, s.NewslettersOf(2))
	assert.Empty(t, s.SubscribersOf(10))

	s.DetachUser(1)
	assert.Empty(t, s.SubscribersOf(11))
	assert.Equal(t, 0, s.Len())
}

// Walks a fixed sequence of operations and checks the symmetric invariant after each.
func TestSubscriptions_InvariantHolds(t *testing.T) {
	s := NewSubscriptions()
	ops := []struct {
		add  bool
		u, n uint
	}{
		{true, 1, 1}, {true, 1, 2}, {true, 2, 1}, {false, 1, 1},
		{true, 3, 3}, {true, 1, 1}, {false, 2, 1}, {false, 2, 1}, {true, 2, 3},
	}
	for _, op := range ops {
		if op.add {
			s.Add(op.u, op.n)
		} else {
			s.Remove(op.u, op.n)
		}
		for u := uint(1); u <= 3; u++ {
			for _, n := range s.NewslettersOf(u) {
				assert.Contains(t, s.SubscribersOf(n), u)
			}
		}
		for n := uint(1); n <= 3; n++ {
			for _, u := range s.SubscribersOf(n) {
				assert.Contains(t, s.NewslettersOf(u), n)
			}
		}
	}
	assert.Equal(t, 4, s.Len())
}

func TestUser_Lifecycle(t *testing.T) {
	created := time.Date(2022, 6, 26, 14, 59, 29, 0, time.UTC)
	u := NewUser(created)
	assert.Equal(t, created, u.CreatedAt)
	assert.NotNil(t, u.Roles)
	assert.False(t, u.IsDeleted())

	later := created.Add(time.Hour)
	u.Touch(later)
	u.SoftDelete(later)
	assert.Equal(t, later, *u.UpdatedAt)
	assert.True(t, u.IsDeleted())
	assert.Equal(t, created, u.CreatedAt)
}

func TestNewsletter_Lifecycle(t *testing.T) {
	created := time.Now()
	n := NewNewsletter(created)
	assert.Equal(t, created, n.CreatedAt)
	assert.Nil(t, n.UpdatedAt)

	n.SoftDelete(created)
	assert.True(t, n.IsDeleted())
}

func TestSubscriptions_LinkRejectsUnsaved(t *testing.T) {
	s := NewSubscriptions()
	u := NewUser(time.Now())
	n := NewNewsletter(time.Now())

	_, err := s.Link(u, n)
	assert.ErrorIs(t, err, ErrUnpersisted)
	_, err = s.Unlink(u, n)
	assert.ErrorIs(t, err, ErrUnpersisted)
	_, err = s.Link(nil, n)
	assert.ErrorIs(t, err, ErrUnpersisted)

	u.ID, n.ID = 3, 30
	added, err := s.Link(u, n)
	assert.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []uint{30}, s.NewslettersOf(3))

	removed, err := s.Unlink(u, n)
	assert.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, s.Len())
}
