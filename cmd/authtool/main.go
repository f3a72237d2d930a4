// Command authtool is an operations CLI for the authentication core:
// it hashes and verifies passwords with the configured parameters,
// evaluates the password policy, and sets account passwords directly
// through the credential store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/meridian-id/authcore/internal/core/domain"
	"github.com/meridian-id/authcore/internal/infra/breach"
	"github.com/meridian-id/authcore/internal/infra/config"
	"github.com/meridian-id/authcore/internal/infra/database"
	"github.com/meridian-id/authcore/internal/infra/kafka"
	"github.com/meridian-id/authcore/internal/infra/logger"
	authredis "github.com/meridian-id/authcore/internal/infra/redis"
	"github.com/meridian-id/authcore/internal/infra/security"
	"github.com/meridian-id/authcore/internal/repository/postgres"
	"github.com/meridian-id/authcore/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	hasher, err := security.NewBcryptHasher(security.BcryptConfig{
		Cost:           cfg.Bcrypt.Cost,
		Version:        cfg.Bcrypt.Version,
		MaxConcurrency: cfg.Bcrypt.MaxConcurrency,
	})
	if err != nil {
		log.Fatalf("failed to init hasher: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch os.Args[1] {
	case "hash":
		err = runHash(hasher, os.Args[2:])
	case "verify":
		err = runVerify(hasher, os.Args[2:])
	case "policy":
		err = runPolicy(cfg, os.Args[2:])
	case "authenticate":
		err = runAuthenticate(ctx, cfg, hasher, zlog, os.Args[2:])
	case "set-password":
		err = runSetPassword(ctx, cfg, hasher, zlog, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: authtool <hash|verify|policy|authenticate|set-password> [flags]")
}

func runHash(hasher *security.BcryptHasher, args []string) error {
	fs := flag.NewFlagSet("hash", flag.ExitOnError)
	password := fs.String("password", "", "password to hash")
	_ = fs.Parse(args)

	if *password == "" {
		return errors.New("-password is required")
	}

	encoded, err := hasher.Hash(*password)
	if err != nil {
		return err
	}

	fmt.Println(encoded)
	return nil
}

func runVerify(hasher *security.BcryptHasher, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	password := fs.String("password", "", "password to verify")
	encoded := fs.String("hash", "", "encoded hash to verify against")
	_ = fs.Parse(args)

	if *password == "" || *encoded == "" {
		return errors.New("-password and -hash are required")
	}

	matched, err := hasher.Verify(*password, *encoded)
	if err != nil {
		return err
	}

	cost, err := hasher.Cost(*encoded)
	if err != nil {
		return err
	}

	fmt.Printf("matched=%t cost=%d\n", matched, cost)
	return nil
}

func runPolicy(cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("policy", flag.ExitOnError)
	password := fs.String("password", "", "password to evaluate")
	email := fs.String("email", "", "account email for derived-value checks")
	_ = fs.Parse(args)

	policy := security.NewPasswordPolicy(policyConfig(cfg))
	if err := policy.Validate(*password, domain.PasswordContext{Email: *email}); err != nil {
		var violation *security.PasswordValidationError
		if errors.As(err, &violation) {
			fmt.Printf("rejected: %s (%s)\n", violation.Code, violation.Message)
			return nil
		}
		return err
	}

	fmt.Println("accepted")
	return nil
}

func runAuthenticate(ctx context.Context, cfg *config.AppConfig, hasher *security.BcryptHasher, zlog *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("authenticate", flag.ExitOnError)
	identifier := fs.String("identifier", "", "account email")
	password := fs.String("password", "", "password to check")
	_ = fs.Parse(args)

	if *identifier == "" || *password == "" {
		return errors.New("-identifier and -password are required")
	}

	normalized, err := security.ValidateEmail(*identifier)
	if err != nil {
		return err
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, zlog)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := postgres.NewAccountRepository(pool)
	checker := breachChecker(cfg, zlog)
	events := kafka.NewStubPublisher(zlog)

	logins := usecase.NewLoginService(
		store, hasher, checker, events, nil, zlog,
		hasher.TargetCost(), cfg.Bcrypt.DisableRehash,
	)

	account, err := logins.Authenticate(ctx, normalized, *password)
	if err != nil {
		return err
	}

	fmt.Printf("authenticated account=%s login_epoch=%d\n", account.ID, account.LoginEpoch)
	return nil
}

func runSetPassword(ctx context.Context, cfg *config.AppConfig, hasher *security.BcryptHasher, zlog *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("set-password", flag.ExitOnError)
	identifier := fs.String("identifier", "", "account email")
	password := fs.String("password", "", "new password")
	_ = fs.Parse(args)

	if *identifier == "" || *password == "" {
		return errors.New("-identifier and -password are required")
	}

	normalized, err := security.ValidateEmail(*identifier)
	if err != nil {
		return err
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, zlog)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := postgres.NewAccountRepository(pool)
	checker := breachChecker(cfg, zlog)
	events := kafka.NewStubPublisher(zlog)
	policy := security.NewPasswordPolicy(policyConfig(cfg))

	passwords := usecase.NewPasswordService(store, hasher, policy, checker, events, zlog)
	if err := passwords.ChangePassword(ctx, normalized, *password); err != nil {
		return err
	}

	fmt.Println("password updated")
	return nil
}

func policyConfig(cfg *config.AppConfig) security.PolicyConfig {
	return security.PolicyConfig{
		MinLength:          cfg.Policy.MinLength,
		MaxLength:          cfg.Policy.MaxLength,
		AllowAnyCharacters: cfg.Policy.AllowAnyCharacters,
		Digits:             cfg.Policy.Digits,
		Lowercase:          cfg.Policy.Lowercase,
		Uppercase:          cfg.Policy.Uppercase,
		Symbols:            cfg.Policy.Symbols,
		MinStrengthScore:   cfg.Policy.MinStrengthScore,
	}
}

func breachChecker(cfg *config.AppConfig, zlog *zap.Logger) *breach.Checker {
	if !cfg.Breach.Enabled {
		return breach.NewChecker(cfg.Breach, nil, nil, zlog)
	}

	cache, err := authredis.NewClient(cfg.Redis, zlog)
	if err != nil {
		zlog.Warn("redis unavailable, breach cache disabled", zap.Error(err))
		cache = nil
	}

	return breach.NewChecker(cfg.Breach, cache, nil, zlog)
}
