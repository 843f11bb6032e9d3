package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

var ErrBadCreds = fmt.Errorf("invalid email or password: %w", domain.ErrUnauthenticated)

type AuthService struct {
	Users       *repos.UserRepo
	Drafts      *repos.DraftRepo
	IdleTimeout time.Duration
}

func NewAuthService(users *repos.UserRepo, drafts *repos.DraftRepo, idle time.Duration) *AuthService {
	return &AuthService{Users: users, Drafts: drafts, IdleTimeout: idle}
}

type Registration struct {
	Email    string
	Password string
	FullName string
	Phone    string
	Address  string
	City     string
	ZipCode  string
}

func (s *AuthService) Register(ctx context.Context, in Registration) (*domain.User, error) {
	email, ok := validate.Email(in.Email)
	if !ok {
		return nil, domain.Invalid("email", "enter a valid email address")
	}
	if !validate.Password(in.Password) {
		return nil, domain.Invalid("password", "8-64 characters with upper, lower, digit and symbol")
	}
	name, ok := validate.Name(in.FullName, 100)
	if !ok {
		return nil, domain.Invalid("fullName", "name is required (max 100 characters)")
	}
	phone, ok := validate.Phone(in.Phone)
	if !ok {
		return nil, domain.Invalid("phone", "enter a valid phone number")
	}
	addr, ok := validate.Text(in.Address, 500)
	if !ok {
		return nil, domain.Invalid("address", "address is too long")
	}
	city, ok := validate.Text(in.City, 100)
	if !ok {
		return nil, domain.Invalid("city", "city is too long")
	}
	zip, ok := validate.ZIP(in.ZipCode)
	if !ok {
		return nil, domain.Invalid("zipCode", "enter a valid postal code")
	}

	if _, err := s.Users.ByEmail(ctx, email); err == nil {
		return nil, domain.Invalid("email", "an account with this email already exists")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	h, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := domain.User{
		ID:       uuid.NewString(),
		Email:    strings.ToLower(email),
		FullName: name,
		Hash:     string(h),
		Phone:    phone,
		Address:  addr,
		City:     city,
		ZipCode:  zip,
		Active:   true,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			return nil, domain.Invalid("email", "an account with this email already exists")
		}
		return nil, err
	}
	return &u, nil
}

// Login checks the credentials and binds the session to the user.
func (s *AuthService) Login(ctx context.Context, sid, email, password string) (*domain.User, error) {
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrBadCreds
		}
		return nil, err
	}
	if !u.Active || bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	if err := s.Users.BindSession(ctx, sid, u.ID); err != nil {
		return nil, err
	}
	if err := s.Users.StampLogin(ctx, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

// Logout ends the session and drops any half-finished checkout.
func (s *AuthService) Logout(ctx context.Context, sid string) error {
	if err := s.Drafts.Delete(ctx, sid); err != nil {
		return err
	}
	return s.Users.UnbindSession(ctx, sid)
}

// Identify resolves a session id to the caller. Unknown and idle sessions
// yield the anonymous identity; idle ones are removed.
func (s *AuthService) Identify(ctx context.Context, sid string) (domain.Identity, error) {
	if sid == "" {
		return domain.Identity{}, nil
	}
	u, lastSeen, err := s.Users.SessionUser(ctx, sid)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Identity{}, nil
	}
	if err != nil {
		return domain.Identity{}, err
	}
	if s.IdleTimeout > 0 && time.Since(lastSeen) > s.IdleTimeout {
		return domain.Identity{}, s.Logout(ctx, sid)
	}
	if !u.Active {
		return domain.Identity{}, nil
	}
	if err := s.Users.TouchSession(ctx, sid); err != nil {
		return domain.Identity{}, err
	}
	return domain.IdentityOf(u), nil
}

// Profile returns the caller's stored details.
func (s *AuthService) Profile(ctx context.Context, id domain.Identity) (*domain.User, error) {
	if !id.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	return s.Users.ByID(ctx, id.UserID)
}
