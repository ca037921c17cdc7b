package auth

import "newsletter-api/internal/domain"

// Principal is the authentication view of a user.
type Principal struct {
	ID           uint
	UUID         string
	StoredRoles  []string
	PasswordHash string
}

// FromUser maps a persisted user to its principal.
func FromUser(u *domain.User) *Principal {
	return &Principal{
		ID:           u.ID,
		UUID:         u.UUID,
		StoredRoles:  append([]string(nil), u.Roles...),
		PasswordHash: u.Password,
	}
}

// FromToken rebuilds a principal carrying only the user id. It never reads
// storage; authorization uses the roles already embedded in the claims.
func FromToken(id uint, _ *Claims) *Principal {
	return &Principal{ID: id}
}

func (p *Principal) Identifier() string { return p.UUID }

// Roles returns the stored roles plus domain.RoleUser, without duplicates.
func (p *Principal) Roles() []string {
	seen := make(map[string]struct{}, len(p.StoredRoles)+1)
	out := make([]string, 0, len(p.StoredRoles)+1)
	for _, r := range append(append([]string(nil), p.StoredRoles...), domain.RoleUser) {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// EraseCredentials runs after authentication. Nothing transient is held yet.
func (p *Principal) EraseCredentials() {}
