package service

import (
	"context"
	"errors"

	"newsletter-api/internal/core/auth"
	"newsletter-api/internal/domain"
	"newsletter-api/pkg/utils"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserFinder is the lookup the login flow needs.
type UserFinder interface {
	FindByUUID(ctx context.Context, uuid string) (*domain.User, error)
}

type AuthService struct {
	users UserFinder
	jwt   *auth.JWTer
}

func NewAuthService(users UserFinder, j *auth.JWTer) *AuthService {
	return &AuthService{users: users, jwt: j}
}

// Login checks username (the user uuid) and password and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.FindByUUID(ctx, username)
	if err != nil {
		return "", err
	}
	if u == nil || !utils.CheckPassword(password, u.Password) {
		return "", ErrInvalidCredentials
	}
	p := auth.FromUser(u)
	tok, err := s.jwt.Issue(p)
	if err != nil {
		return "", err
	}
	p.EraseCredentials()
	return tok, nil
}
