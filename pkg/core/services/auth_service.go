package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
	"github.com/wadjakorntonsri/linkshort/pkg/logging"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	bcryptCost        = 12
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload.
type Claims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users     ports.UserRepository
	logger    *logging.Logger
	jwtSecret []byte
	expiresIn time.Duration
	cost      int
	now       func() time.Time
}

func NewAuthService(users ports.UserRepository, jwtSecret string, expiresIn time.Duration, logger *logging.Logger) *AuthService {
	if logger == nil {
		logger = logging.Discard()
	}
	if expiresIn <= 0 {
		expiresIn = 7 * 24 * time.Hour
	}
	return &AuthService{
		users:     users,
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		expiresIn: expiresIn,
		cost:      bcryptCost,
		now:       time.Now,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", domain.ErrValidation)
	}
	return email, nil
}

// Register creates a regular user and returns it with a fresh token.
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, string, error) {
	return s.createUser(ctx, email, password, domain.RoleUser)
}

// CreateAdmin is used by the CLI to bootstrap the first administrator.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	user, _, err := s.createUser(ctx, email, password, domain.RoleAdmin)
	return user, err
}

func (s *AuthService) createUser(ctx context.Context, email, password, role string) (*domain.User, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, "", err
	}
	if len(password) < MinPasswordLength {
		return nil, "", fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, MinPasswordLength)
	}

	existing, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", domain.ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, "", err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}
	s.logger.LogAuthEvent(ctx, "register", email, true)

	token, _, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	// Accounts created through Google have no password.
	if user == nil || user.PasswordHash == "" {
		s.logger.LogAuthEvent(ctx, "login", email, false)
		return nil, "", domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.LogAuthEvent(ctx, "login", email, false)
		return nil, "", domain.ErrInvalidCredentials
	}
	return s.completeLogin(ctx, user)
}

// LoginExternal signs in a user whose identity an external provider already
// verified, creating the account on first sight.
func (s *AuthService) LoginExternal(ctx context.Context, email string) (*domain.User, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, "", err
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		user = &domain.User{Email: email, Role: domain.RoleUser, CreatedAt: s.now().UTC()}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, "", err
		}
	}
	return s.completeLogin(ctx, user)
}

func (s *AuthService) completeLogin(ctx context.Context, user *domain.User) (*domain.User, string, error) {
	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, "", err
	}
	user.LastLogin = &now
	s.logger.LogAuthEvent(ctx, "login", user.Email, true)

	token, _, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

// IssueToken signs an HS256 token for user.
func (s *AuthService) IssueToken(user *domain.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiresIn)
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseToken verifies signature and expiry only.
func (s *AuthService) ParseToken(tokenString string) (*domain.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &domain.Principal{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

// Authenticate verifies the token and reloads the user so deleted accounts and
// role changes take effect before the token expires.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*domain.Principal, error) {
	p, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindUserByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return &domain.Principal{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}

var _ ports.AuthService = (*AuthService)(nil)
