// Package auth resolves callers to (user id, role). It owns registration,
// login and token parsing; nothing else in the system touches credentials.
package auth

import (
	"context"
	"time"

	"foodcourt/internal/apperr"
	"foodcourt/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

// Store is the account slice of the repository.
type Store interface {
	CreateCustomer(ctx context.Context, username, passwordHash string) (*models.Customer, error)
	CustomerByUsername(ctx context.Context, username string) (*models.Customer, error)
	CreateMerchant(ctx context.Context, username, passwordHash string) (*models.Merchant, error)
	MerchantByUsername(ctx context.Context, username string) (*models.Merchant, error)
}

// Service handles user authentication for both roles.
type Service struct {
	store  Store
	secret []byte
}

func NewService(store Store, secret string) *Service {
	return &Service{store: store, secret: []byte(secret)}
}

// Register creates a new account with a hashed password and returns its id.
func (s *Service) Register(ctx context.Context, role models.Role, username, password string) (int, error) {
	if username == "" {
		return 0, apperr.InvalidArgument("username cannot be empty")
	}
	if password == "" {
		return 0, apperr.InvalidArgument("password cannot be empty")
	}
	if len(username) > 50 {
		return 0, apperr.InvalidArgument("username too long (max 50 characters)")
	}
	if len(password) > 100 {
		return 0, apperr.InvalidArgument("password too long (max 100 characters)")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	switch role {
	case models.RoleCustomer:
		c, err := s.store.CreateCustomer(ctx, username, string(hashed))
		if err != nil {
			return 0, err
		}
		return c.ID, nil
	case models.RoleMerchant:
		m, err := s.store.CreateMerchant(ctx, username, string(hashed))
		if err != nil {
			return 0, err
		}
		return m.ID, nil
	default:
		return 0, apperr.InvalidArgument("unknown role %q", role)
	}
}

// Login verifies credentials and returns a signed token carrying the user's
// id and role.
func (s *Service) Login(ctx context.Context, role models.Role, username, password string) (string, error) {
	var id int
	var hash string

	switch role {
	case models.RoleCustomer:
		c, err := s.store.CustomerByUsername(ctx, username)
		if err != nil {
			return "", apperr.Unauthorized("invalid credentials")
		}
		id, hash = c.ID, c.PasswordHash
	case models.RoleMerchant:
		m, err := s.store.MerchantByUsername(ctx, username)
		if err != nil {
			return "", apperr.Unauthorized("invalid credentials")
		}
		id, hash = m.ID, m.PasswordHash
	default:
		return "", apperr.InvalidArgument("unknown role %q", role)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", apperr.Unauthorized("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": id,
		"role":    string(role),
		"exp":     time.Now().Add(tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// UserFromToken maps a bearer token back to (user id, role).
func (s *Service) UserFromToken(tokenString string) (int, models.Role, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Unauthorized("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", apperr.Unauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", apperr.Unauthorized("invalid token claims")
	}
	id, ok := claims["user_id"].(float64)
	if !ok {
		return 0, "", apperr.Unauthorized("invalid token claims")
	}
	role, ok := claims["role"].(string)
	if !ok || (role != string(models.RoleCustomer) && role != string(models.RoleMerchant)) {
		return 0, "", apperr.Unauthorized("invalid token claims")
	}
	return int(id), models.Role(role), nil
}
