package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vogiaan1904/ticketbottle-ticketlink/config"
	appErrors "github.com/vogiaan1904/ticketbottle-ticketlink/internal/errors"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/models"
	"github.com/vogiaan1904/ticketbottle-ticketlink/internal/repository"
	pkgLog "github.com/vogiaan1904/ticketbottle-ticketlink/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

const TokenTypeBearer = "bearer"

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterOutput, error)
	Login(ctx context.Context, in LoginInput) (*LoginOutput, error)
	// Identify resolves a bearer token. Missing or invalid tokens resolve to the guest identity.
	Identify(ctx context.Context, bearerToken string) models.Identity
	// SeedUsers registers "name:password:role" entries, skipping names already taken.
	SeedUsers(ctx context.Context, entries []string) error
}

type Claims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	repo   repository.UserRepository
	secret []byte
	expiry time.Duration
	now    func() time.Time
	l      pkgLog.Logger
}

func NewAuthService(repo repository.UserRepository, cfg config.JWTConfig, l pkgLog.Logger) AuthService {
	return &authService{
		repo:   repo,
		secret: []byte(cfg.Secret),
		expiry: cfg.Expiry,
		now:    time.Now,
		l:      l,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*RegisterOutput, error) {
	if in.Username == models.GuestUsername {
		return nil, appErrors.ErrReservedUsername
	}
	if !in.Role.Valid() {
		return nil, &appErrors.InvalidRoleError{Role: string(in.Role)}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, appErrors.ErrPasswordTooLong
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &models.User{
		Username:       in.Username,
		HashedPassword: string(hashed),
		Role:           in.Role,
		CreatedAt:      s.now(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, appErrors.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.l.Infof(ctx, "service.authService.Register: registered %s as %s", u.Username, u.Role)

	return &RegisterOutput{
		Username: u.Username,
		Role:     u.Role,
	}, nil
}

func (s *authService) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	u, err := s.repo.Get(ctx, in.Username)
	if err != nil {
		if errors.Is(err, appErrors.ErrUserNotFound) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(in.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	now := s.now()
	exp := now.Add(s.expiry)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &LoginOutput{
		BearerToken: signed,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   exp,
	}, nil
}

func (s *authService) Identify(ctx context.Context, bearerToken string) models.Identity {
	if bearerToken == "" {
		return models.GuestIdentity()
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(bearerToken, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		s.l.Debugf(ctx, "service.authService.Identify: %v", err)
		return models.GuestIdentity()
	}

	if claims.Username == "" || !claims.Role.Valid() {
		return models.GuestIdentity()
	}

	return models.Identity{
		Username: claims.Username,
		Role:     claims.Role,
	}
}

func (s *authService) SeedUsers(ctx context.Context, entries []string) error {
	for _, entry := range entries {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return fmt.Errorf("invalid seed user %q, want name:password:role", entry)
		}

		_, err := s.Register(ctx, RegisterInput{
			Username: parts[0],
			Password: parts[1],
			Role:     models.Role(parts[2]),
		})
		if err != nil && !errors.Is(err, appErrors.ErrUserAlreadyExists) {
			return fmt.Errorf("failed to seed user %q: %w", parts[0], err)
		}
	}

	return nil
}
