package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/phuslu/log"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type UserRepositoryInterface interface {
	// Create returns domain.ErrEmailAlreadyExists or
	// domain.ErrUsernameAlreadyExists on a unique violation.
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
}

// AccessToken is an issued bearer token.
type AccessToken struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CreateUserInput struct {
	Email       string
	Username    string
	Password    string
	IsSuperuser bool
}

// AuthService logs users in with bcrypt-hashed passwords and issues HS256
// tokens whose subject is the user id.
type AuthService struct {
	users   UserRepositoryInterface
	secret  []byte
	ttl     time.Duration
	uuidGen UUIDGenerator
	now     func() time.Time
}

func NewAuthService(users UserRepositoryInterface, secret string, ttl time.Duration, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{
		users:   users,
		secret:  []byte(secret),
		ttl:     ttl,
		uuidGen: uuidGen,
		now:     time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AccessToken, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrInactiveUser
	}

	return s.IssueToken(user.ID)
}

// IssueToken signs a token for userID valid for the configured TTL.
func (s *AuthService) IssueToken(userID string) (*AccessToken, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to sign token", err)
	}

	return &AccessToken{Token: signed, TokenType: "bearer", ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrInactiveUser
	}
	return user, nil
}

func (s *AuthService) CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	if len(in.Password) < minPasswordLength {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid password", err)
	}

	user := &domain.User{
		ID:             s.uuidGen.NewString(),
		Email:          normalizeEmail(in.Email),
		Username:       strings.TrimSpace(in.Username),
		HashedPassword: string(hash),
		IsActive:       true,
		IsSuperuser:    in.IsSuperuser,
		CreatedAt:      s.now().UTC(),
	}
	if err := domain.ValidateUser(user); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid user", err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

// EnsureSuperuser creates the bootstrap admin unless the email is taken.
func (s *AuthService) EnsureSuperuser(ctx context.Context, email, username, password string) (*domain.User, bool, error) {
	existing, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, err
	}

	user, err := s.CreateUser(ctx, CreateUserInput{Email: email, Username: username, Password: password, IsSuperuser: true})
	if err != nil {
		return nil, false, err
	}
	log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("bootstrap superuser created")
	return user, true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
