package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lendloop/internal/apperrors"
	"lendloop/internal/clock"
	"lendloop/internal/models"
	"lendloop/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by LoginUser for any unknown email, wrong
// password or deleted account, so callers cannot tell them apart.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which JWT is valid
	clock      clock.Clock
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, clk clock.Clock) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour,
		clock:      clk,
	}
}

// RegisterUser registers a new user, hashes their password, and saves them to the database.
func (s *AuthService) RegisterUser(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if strings.HasSuffix(user.Email, "@"+models.DeletedEmailDomain) {
		return apperrors.Invalid("email domain is reserved")
	}

	existing, err := s.userRepo.GetByEmail(ctx, user.Email)
	switch {
	case err == nil && existing != nil:
		return apperrors.Conflict(fmt.Sprintf("email '%s' already registered", user.Email))
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)
	user.IsDeleted = false

	if err := s.userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

// LoginUser authenticates a user and returns a JWT token if successful.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil || user.IsDeleted {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	// Expiry is checked by jwt-go against wall time, not the injected clock.
	issued := jwt.TimeFunc()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"email":    user.Email,
		"is_admin": user.IsAdmin,
		"exp":      issued.Add(s.tokenDurat).Unix(),
		"iat":      issued.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.clock.Now()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", fmt.Errorf("failed to record login: %w", err)
	}

	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// ActorFromClaims builds the request actor from validated token claims.
func ActorFromClaims(claims jwt.MapClaims) (models.Actor, error) {
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return models.Actor{}, fmt.Errorf("invalid token: missing user_id")
	}
	isAdmin, _ := claims["is_admin"].(bool)
	return models.Actor{UserID: userID, IsAdmin: isAdmin}, nil
}

// IsSiteAdmin reports whether userID is currently an active site admin. It
// reads the stored user, so a revoked flag takes effect before the token
// carrying the old claim expires.
func (s *AuthService) IsSiteAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := s.userRepo.GetActiveByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin, nil
}
