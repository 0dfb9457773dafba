package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zawj-chat/internal/models"
	"zawj-chat/internal/repositories"
	"zawj-chat/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	repo      repositories.UserRepository
	jwtSecret string
	tokenTTL  time.Duration
	logger    *logger.Logger
}

func NewUserService(repo repositories.UserRepository, jwtSecret string, tokenTTL time.Duration, log *logger.Logger) *UserService {
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &UserService{
		repo:      repo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    log,
	}
}

// generateJWT creates a new JWT token for the user
func (s *UserService) generateJWT(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
		"exp":      now.Add(s.tokenTTL).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.UserResponse, error) {
	if req.Email == "" || req.Password == "" || req.Username == "" {
		return nil, ErrInvalidRequest
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Password:  string(hashedPassword),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	}

	if err := s.repo.Create(ctx, &user); err != nil {
		if errors.Is(err, repositories.ErrEmailExists) || errors.Is(err, repositories.ErrUsernameExists) {
			s.logger.Info("Registration rejected", "email", user.Email, "reason", err)
			return nil, fmt.Errorf("%w: %v", ErrUserAlreadyExists, err)
		}
		s.logger.Error("Registration failed", "email", user.Email, "error", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", "userID", user.ID, "username", user.Username)
	resp := models.NewUserResponse(&user)
	return &resp, nil
}

func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.LoginResponse{
		Token: token,
		User:  models.NewUserResponse(user),
	}, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.UserResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	resp := models.NewUserResponse(user)
	return &resp, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.UserResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Avatar != nil {
		user.Avatar = strings.TrimSpace(*req.Avatar)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	resp := models.NewUserResponse(user)
	return &resp, nil
}

const (
	defaultUserPageSize = 20
	maxUserPageSize     = 50
)

// ListUsers pages through other members' profiles, newest first. Emails are
// never included.
func (s *UserService) ListUsers(ctx context.Context, viewerID string, q *models.ListUsersQuery) (*models.UserListResponse, error) {
	offset, limit := q.Offset, q.Limit
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultUserPageSize
	}
	if limit > maxUserPageSize {
		limit = maxUserPageSize
	}

	users, total, err := s.repo.Search(ctx, q.Q, viewerID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, models.NewPublicUserResponse(&users[i]))
	}
	return &models.UserListResponse{
		Users:   out,
		Total:   total,
		Offset:  offset,
		Limit:   limit,
		HasMore: int64(offset+len(out)) < total,
	}, nil
}

// GetUser returns another member's public profile.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.UserResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	resp := models.NewPublicUserResponse(user)
	return &resp, nil
}

// Exists reports whether userID belongs to a registered user.
func (s *UserService) Exists(ctx context.Context, userID string) (bool, error) {
	_, err := s.repo.FindByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
