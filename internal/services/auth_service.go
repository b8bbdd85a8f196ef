package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"visionmatch/internal/models"
	"visionmatch/internal/utils"
)

type AuthService struct {
	users     UserStore
	blacklist TokenBlacklist
	tokens    *utils.TokenManager
	logger    *slog.Logger
}

func NewAuthService(users UserStore, blacklist TokenBlacklist, tokens *utils.TokenManager, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:     users,
		blacklist: blacklist,
		tokens:    tokens,
		logger:    logger,
	}
}

func (s *AuthService) Register(ctx context.Context, user *models.User) (*utils.TokenPair, error) {
	user.Prepare()
	if user.Role != models.RoleClient && user.Role != models.RoleCreator {
		return nil, fmt.Errorf("%w: role must be client or creator", ErrInvalidInput)
	}

	existing, err := s.users.FindUserByEmail(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hashed, err := utils.Hash(user.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = string(hashed)
	user.Password = ""

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return s.tokens.GenerateTokens(user.ID, user.Email, string(user.Role))
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *utils.TokenPair, error) {
	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}
	if err := utils.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to record login", "user_id", user.ID, "error", err)
	}
	pair, err := s.tokens.GenerateTokens(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates a token pair. The presented refresh token is blacklisted so
// it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*utils.TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	user, err := s.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	if err := s.blacklist.Blacklist(ctx, claims.ID); err != nil {
		return nil, fmt.Errorf("failed to revoke token: %w", err)
	}
	return s.tokens.GenerateTokens(user.ID, user.Email, string(user.Role))
}

// Logout revokes the access and refresh tokens sharing jti.
func (s *AuthService) Logout(ctx context.Context, jti string) error {
	if jti == "" {
		return ErrInvalidToken
	}
	return s.blacklist.Blacklist(ctx, jti)
}

// Me returns the account behind an access token.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	id, err := utils.ParseUUID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	user, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return user, nil
}
