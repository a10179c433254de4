// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/repository"
)

// Account errors.
var (
	// ErrSignupConflict hides whether the email is already registered.
	ErrSignupConflict = errors.New("signup failed")
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("incorrect email or password")
)

// AccountStore persists accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
}

// TokenIssuer signs identity tokens.
type TokenIssuer interface {
	Issue(subject, email string) (string, error)
}

// AccountService handles signup and signin.
type AccountService struct {
	store   AccountStore
	tokens  TokenIssuer
	metrics metrics.Recorder
	logger  *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAccountService creates a new AccountService.
func NewAccountService(store AccountStore, tokens TokenIssuer, recorder metrics.Recorder, logger *slog.Logger) *AccountService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		store:   store,
		tokens:  tokens,
		metrics: recorder,
		logger:  logger.With("component", "accounts"),
	}
}

// SignupInput defines input for creating an account.
type SignupInput struct {
	FullName string `json:"full_name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// SigninInput defines input for signing in.
type SigninInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by a successful signup or signin.
type AuthResult struct {
	AccessToken string
	Account     *model.Account
}

// Signup creates an account and issues a token for it.
func (s *AccountService) Signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	input.Email = strings.TrimSpace(input.Email)
	if err := validateStruct(input); err != nil {
		s.metrics.IncSignup(metrics.OutcomeInvalid)
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		s.metrics.IncSignup(metrics.OutcomeError)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &model.Account{
		Email:          input.Email,
		Name:           input.FullName,
		HashedPassword: hash,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			s.metrics.IncSignup(metrics.OutcomeConflict)
			s.logger.WarnContext(ctx, "signup rejected", "reason", "email_exists")
			return nil, ErrSignupConflict
		}
		s.metrics.IncSignup(metrics.OutcomeError)
		s.logger.ErrorContext(ctx, "signup failed", "error", err)
		return nil, fmt.Errorf("create account: %w", err)
	}

	token, err := s.tokens.Issue(account.ID, account.Email)
	if err != nil {
		s.metrics.IncSignup(metrics.OutcomeError)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.IncSignup(metrics.OutcomeSuccess)
	s.logger.InfoContext(ctx, "account created", "account_id", account.ID)
	return &AuthResult{AccessToken: token, Account: account}, nil
}

// Signin verifies credentials and issues a token.
func (s *AccountService) Signin(ctx context.Context, input SigninInput) (*AuthResult, error) {
	input.Email = strings.TrimSpace(input.Email)
	if err := validateStruct(input); err != nil {
		s.metrics.IncSignin(metrics.OutcomeInvalid)
		return nil, err
	}

	account, err := s.store.GetAccountByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			// Equalise timing with the known-email path.
			auth.VerifyPassword(input.Password, s.timingHash())
			s.metrics.IncSignin(metrics.OutcomeInvalid)
			return nil, ErrInvalidCredentials
		}
		s.metrics.IncSignin(metrics.OutcomeError)
		s.logger.ErrorContext(ctx, "signin lookup failed", "error", err)
		return nil, fmt.Errorf("get account: %w", err)
	}

	if !auth.VerifyPassword(input.Password, account.HashedPassword) {
		s.metrics.IncSignin(metrics.OutcomeInvalid)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(account.ID, account.Email)
	if err != nil {
		s.metrics.IncSignin(metrics.OutcomeError)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.IncSignin(metrics.OutcomeSuccess)
	return &AuthResult{AccessToken: token, Account: account}, nil
}

func (s *AccountService) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := auth.HashPassword("timing-equaliser-password")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
