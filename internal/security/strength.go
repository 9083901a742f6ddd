package security

import (
	"strings"
	"unicode"
)

// MinPasswordLength is the shortest password accepted. MaxPasswordBytes is the
// bcrypt input limit.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
)

// Password rule violations, in the order they are reported.
const (
	RuleLength = "password must be at least 8 characters long"
	RuleMaxLen = "password must be at most 72 bytes long"
	RuleUpper  = "password must contain an uppercase letter"
	RuleLower  = "password must contain a lowercase letter"
	RuleDigit  = "password must contain a digit"
	RuleSymbol = "password must contain a symbol"
)

const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// StrengthResult is the outcome of ValidatePasswordStrength.
type StrengthResult struct {
	Valid      bool
	Violations []string
}

// ValidatePasswordStrength checks every rule and returns all violations at once.
func ValidatePasswordStrength(password string) StrengthResult {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}

	var violations []string
	if len([]rune(password)) < MinPasswordLength {
		violations = append(violations, RuleLength)
	}
	if len(password) > MaxPasswordBytes {
		violations = append(violations, RuleMaxLen)
	}
	if !upper {
		violations = append(violations, RuleUpper)
	}
	if !lower {
		violations = append(violations, RuleLower)
	}
	if !digit {
		violations = append(violations, RuleDigit)
	}
	if !symbol {
		violations = append(violations, RuleSymbol)
	}
	return StrengthResult{Valid: len(violations) == 0, Violations: violations}
}
