package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"habitchallenge/internal/model"
	"habitchallenge/internal/repository"
)

// UserService handles business logic for user operations
type UserService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// SignUp creates a regular account.
func (s *UserService) SignUp(ctx context.Context, req *model.SignUpRequest) (*model.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	nickname := strings.TrimSpace(req.Nickname)
	if nickname == "" {
		return nil, fmt.Errorf("%w: nickname is required", model.ErrValidation)
	}
	if len(req.Password) < model.MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", model.ErrValidation, model.MinPasswordLength)
	}

	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, model.ErrEmailExists
	}

	return s.create(ctx, email, req.Password, nickname, model.RoleUser)
}

func (s *UserService) create(ctx context.Context, email, password, nickname string, role model.Role) (*model.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:          email,
		PasswordHashed: string(hashed),
		Nickname:       nickname,
		Role:           role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login authenticates by email and password. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// SeedAccount is one account created at startup when missing.
type SeedAccount struct {
	Email    string
	Password string
	Nickname string
	Role     model.Role
}

// SeedConfig lists the accounts Seed ensures exist.
type SeedConfig struct {
	Accounts []SeedAccount
}

const seedUserPassword = "password123"

// DefaultSeedConfig returns the admin account (skipped when adminEmail is
// empty) followed by five sample users.
func DefaultSeedConfig(adminEmail, adminPassword string) SeedConfig {
	var cfg SeedConfig
	if adminEmail != "" && adminPassword != "" {
		cfg.Accounts = append(cfg.Accounts, SeedAccount{
			Email:    adminEmail,
			Password: adminPassword,
			Nickname: "관리자",
			Role:     model.RoleAdmin,
		})
	}
	for i, nickname := range []string{"열정맨", "걷기왕", "독서광", "미라클모닝", "갓생러"} {
		cfg.Accounts = append(cfg.Accounts, SeedAccount{
			Email:    fmt.Sprintf("user%d@example.com", i+1),
			Password: seedUserPassword,
			Nickname: nickname,
			Role:     model.RoleUser,
		})
	}
	return cfg
}

// Seed creates each account whose email is not taken yet. Running it again
// creates nothing.
func (s *UserService) Seed(ctx context.Context, cfg SeedConfig) (int, error) {
	created := 0
	for _, acc := range cfg.Accounts {
		email, err := normalizeEmail(acc.Email)
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", acc.Email, err)
		}

		exists, err := s.repo.ExistsByEmail(ctx, email)
		if err != nil {
			return created, fmt.Errorf("seed check %s: %w", email, err)
		}
		if exists {
			continue
		}

		role := acc.Role
		if !role.Valid() {
			role = model.RoleUser
		}
		if _, err := s.create(ctx, email, acc.Password, acc.Nickname, role); err != nil {
			// Another instance seeding concurrently got there first.
			if errors.Is(err, model.ErrEmailExists) {
				continue
			}
			return created, fmt.Errorf("seed %s: %w", email, err)
		}
		created++
		log.Printf("[UserService] Seeded %s account: %s", role, email)
	}
	return created, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email is invalid", model.ErrValidation)
	}
	return email, nil
}
