package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/config"
	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/repository"
	"github.com/taskflow/taskflow/internal/service"
)

type output struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Password    string `json:"password,omitempty"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	var (
		databaseURL = flag.String("database-url", cfg.DatabaseURL, "postgres:// or sqlite:// connection string")
		email       = flag.String("email", "dev@todo.local", "Account email")
		name        = flag.String("name", "Developer", "Account full name")
		password    = flag.String("password", os.Getenv("BOOTSTRAP_PASSWORD"), "Account password; generated when empty")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	secret := cfg.SigningSecret()
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET or BETTER_AUTH_SECRET is required so the token verifies against the server")
		os.Exit(1)
	}

	generatedPassword := false
	if *password == "" {
		p, err := auth.GenerateSecret()
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate password:", err)
			os.Exit(1)
		}
		*password = p
		generatedPassword = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo, err := repository.New(ctx, *databaseURL,
		repository.WithLogger(logger),
		repository.WithAutoMigrate(true),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	tokens, err := auth.NewTokenService([]byte(secret), cfg.TokenTTL())
	if err != nil {
		fmt.Fprintln(os.Stderr, "token service:", err)
		os.Exit(1)
	}

	accounts := service.NewAccountService(repo, tokens, metrics.NewNoop(), logger)
	result, err := ensureAccount(ctx, accounts, *name, *email, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	out := output{
		UserID:      result.Account.ID,
		Email:       result.Account.Email,
		AccessToken: result.AccessToken,
		ExpiresIn:   int64(tokens.TTL().Seconds()),
	}
	if generatedPassword {
		out.Password = *password
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.AccessToken)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// ensureAccount signs up, or signs in when the email is already registered.
func ensureAccount(ctx context.Context, accounts *service.AccountService, name, email, password string) (*service.AuthResult, error) {
	result, err := accounts.Signup(ctx, service.SignupInput{FullName: name, Email: email, Password: password})
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, service.ErrSignupConflict) {
		return nil, fmt.Errorf("create account: %w", err)
	}

	result, err = accounts.Signin(ctx, service.SigninInput{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("account %s exists and sign in failed: %w", email, err)
	}
	return result, nil
}
