package security

import (
	"fmt"
	"strings"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/meridian-id/authcore/internal/core/domain"
)

// Violation codes reported by the password policy. Checks run in a fixed
// order and short-circuit on the first failure; callers depend on which
// code is reported for multi-violating inputs.
const (
	CodeNotSet           = "not_set"
	CodeTooShort         = "too_short"
	CodeTooLong          = "too_long"
	CodeInvalidCharacter = "invalid_character"
	CodeContainsEmail    = "contains_email"
	CodeWeakPassword     = "weak_password"
)

const (
	defaultMinPasswordLength = 6
	defaultDigits            = "1234567890"
	defaultLowercase         = "abcdefghijklmnopqrstuvwxyz"
	defaultUppercase         = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	defaultSymbols           = "@#$%^&*()-_=+[]{};:,.<>/?!"
)

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PolicyConfig captures the process-wide password policy settings, loaded
// at startup and read-only thereafter.
type PolicyConfig struct {
	MinLength          int
	MaxLength          int
	AllowAnyCharacters bool
	Digits             string
	Lowercase          string
	Uppercase          string
	Symbols            string
	// MinStrengthScore enables an additional zxcvbn strength check when
	// greater than zero. It runs after all other checks so the ordered
	// violation codes are unaffected.
	MinStrengthScore int
}

// DefaultPolicyConfig returns the built-in policy settings.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		MinLength:          defaultMinPasswordLength,
		MaxLength:          MaxPasswordBytes,
		AllowAnyCharacters: true,
		Digits:             defaultDigits,
		Lowercase:          defaultLowercase,
		Uppercase:          defaultUppercase,
		Symbols:            defaultSymbols,
	}
}

// PasswordPolicy implements port.PasswordPolicyValidator.
type PasswordPolicy struct {
	cfg     PolicyConfig
	allowed string
}

// NewPasswordPolicy builds a policy from the supplied configuration,
// normalising the effective maximum to the hashing ceiling.
func NewPasswordPolicy(cfg PolicyConfig) *PasswordPolicy {
	if cfg.MinLength <= 0 {
		cfg.MinLength = defaultMinPasswordLength
	}
	if cfg.MaxLength <= 0 || cfg.MaxLength > MaxPasswordBytes {
		cfg.MaxLength = MaxPasswordBytes
	}
	if cfg.Digits == "" {
		cfg.Digits = defaultDigits
	}
	if cfg.Lowercase == "" {
		cfg.Lowercase = defaultLowercase
	}
	if cfg.Uppercase == "" {
		cfg.Uppercase = defaultUppercase
	}
	if cfg.Symbols == "" {
		cfg.Symbols = defaultSymbols
	}

	return &PasswordPolicy{
		cfg:     cfg,
		allowed: cfg.Digits + cfg.Lowercase + cfg.Uppercase + cfg.Symbols,
	}
}

// Validate checks the password against the policy and returns the first
// violation encountered, or nil when the password is acceptable. The
// check order is a contract: not_set, too_short, too_long,
// invalid_character (only when character restriction is active), then
// contains_email.
func (p *PasswordPolicy) Validate(password string, ctx domain.PasswordContext) error {
	if p == nil {
		return fmt.Errorf("password policy not configured")
	}

	if password == "" {
		return &PasswordValidationError{
			Code:    CodeNotSet,
			Message: "password is required",
		}
	}

	if len(password) < p.cfg.MinLength {
		return &PasswordValidationError{
			Code:    CodeTooShort,
			Message: fmt.Sprintf("password must be at least %d characters long", p.cfg.MinLength),
		}
	}

	if len(password) > p.cfg.MaxLength {
		return &PasswordValidationError{
			Code:    CodeTooLong,
			Message: fmt.Sprintf("password must be at most %d characters long", p.cfg.MaxLength),
		}
	}

	if !p.cfg.AllowAnyCharacters {
		for _, r := range password {
			if !strings.ContainsRune(p.allowed, r) {
				return &PasswordValidationError{
					Code:    CodeInvalidCharacter,
					Message: "password contains an invalid character",
				}
			}
		}
	}

	if err := p.checkEmail(password, ctx.Email); err != nil {
		return err
	}

	if p.cfg.MinStrengthScore > 0 {
		score := p.cfg.MinStrengthScore
		if score > 4 {
			score = 4
		}
		result := zxcvbn.PasswordStrength(password, []string{ctx.Email})
		if result.Score < score {
			return &PasswordValidationError{
				Code:    CodeWeakPassword,
				Message: "password is too weak; choose a more complex value",
			}
		}
	}

	return nil
}

func (p *PasswordPolicy) checkEmail(password, email string) error {
	if email == "" {
		return nil
	}

	violation := &PasswordValidationError{
		Code:    CodeContainsEmail,
		Message: "password must not contain your email address",
	}

	if strings.Contains(password, email) {
		return violation
	}
	if local, _, found := strings.Cut(email, "@"); found && local != "" && strings.Contains(password, local) {
		return violation
	}

	return nil
}
