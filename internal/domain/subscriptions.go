package domain

import (
	"errors"
	"sort"
)

// ErrUnpersisted is returned by Link and Unlink for an entity without an id.
var ErrUnpersisted = errors.New("entity has no id yet")

// Subscriptions owns the user <-> newsletter association as two id indexes.
// Every mutation updates both indexes or neither, so Has(u, n) always agrees
// with NewslettersOf(u) and SubscribersOf(n). Zero ids belong to entities that
// were never persisted: the id-level calls ignore them, Link and Unlink
// return ErrUnpersisted.
type Subscriptions struct {
	byUser       map[uint]map[uint]struct{}
	byNewsletter map[uint]map[uint]struct{}
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		byUser:       map[uint]map[uint]struct{}{},
		byNewsletter: map[uint]map[uint]struct{}{},
	}
}

// Load seeds the indexes from persisted join rows.
func (s *Subscriptions) Load(rows []UserNewsletter) {
	for _, r := range rows {
		s.Add(r.UserID, r.NewsletterID)
	}
}

// Add subscribes userID to newsletterID. It reports whether the pair was new.
func (s *Subscriptions) Add(userID, newsletterID uint) bool {
	if userID == 0 || newsletterID == 0 || s.Has(userID, newsletterID) {
		return false
	}
	link(s.byUser, userID, newsletterID)
	link(s.byNewsletter, newsletterID, userID)
	return true
}

// Remove detaches the pair on both sides. It reports whether the pair existed.
func (s *Subscriptions) Remove(userID, newsletterID uint) bool {
	if !s.Has(userID, newsletterID) {
		return false
	}
	unlink(s.byUser, userID, newsletterID)
	unlink(s.byNewsletter, newsletterID, userID)
	return true
}

// Link is Add for loaded entities. It refuses an entity that was never
// saved instead of ignoring it.
func (s *Subscriptions) Link(u *User, n *Newsletter) (bool, error) {
	if err := persisted(u, n); err != nil {
		return false, err
	}
	return s.Add(u.ID, n.ID), nil
}

func (s *Subscriptions) Unlink(u *User, n *Newsletter) (bool, error) {
	if err := persisted(u, n); err != nil {
		return false, err
	}
	return s.Remove(u.ID, n.ID), nil
}

func persisted(u *User, n *Newsletter) error {
	if u == nil || n == nil || u.ID == 0 || n.ID == 0 {
		return ErrUnpersisted
	}
	return nil
}

func (s *Subscriptions) Has(userID, newsletterID uint) bool {
	_, ok := s.byUser[userID][newsletterID]
	return ok
}

func (s *Subscriptions) NewslettersOf(userID uint) []uint {
	return sortedKeys(s.byUser[userID])
}

func (s *Subscriptions) SubscribersOf(newsletterID uint) []uint {
	return sortedKeys(s.byNewsletter[newsletterID])
}

// DetachUser drops every subscription of userID, as the join table cascade does.
func (s *Subscriptions) DetachUser(userID uint) {
	for _, n := range s.NewslettersOf(userID) {
		s.Remove(userID, n)
	}
}

func (s *Subscriptions) DetachNewsletter(newsletterID uint) {
	for _, u := range s.SubscribersOf(newsletterID) {
		s.Remove(u, newsletterID)
	}
}

// Len is the number of (user, newsletter) pairs.
func (s *Subscriptions) Len() int {
	n := 0
	for _, set := range s.byUser {
		n += len(set)
	}
	return n
}

func link(idx map[uint]map[uint]struct{}, from, to uint) {
	set, ok := idx[from]
	if !ok {
		set = map[uint]struct{}{}
		idx[from] = set
	}
	set[to] = struct{}{}
}

func unlink(idx map[uint]map[uint]struct{}, from, to uint) {
	set := idx[from]
	delete(set, to)
	if len(set) == 0 {
		delete(idx, from)
	}
}

func sortedKeys(set map[uint]struct{}) []uint {
	out := make([]uint, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
