package security

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is the most bcrypt will hash.
	MaxPasswordBytes = 72
)

const (
	ViolationTooShort    = "Password must be at least 8 characters long"
	ViolationNoLowercase = "Password must contain at least one lowercase letter"
	ViolationNoUppercase = "Password must contain at least one uppercase letter"
	ViolationNoDigit     = "Password must contain at least one number"
	ViolationTooLong     = "Password must be at most 72 bytes long"
)

type PasswordCheck struct {
	Valid      bool
	Violations []string
}

// ValidatePasswordStrength reports every rule the password breaks, not just
// the first one.
func ValidatePasswordStrength(password string) PasswordCheck {
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}

	violations := make([]string, 0, 5)
	if utf8.RuneCountInString(password) < MinPasswordLength {
		violations = append(violations, ViolationTooShort)
	}
	if len(password) > MaxPasswordBytes {
		violations = append(violations, ViolationTooLong)
	}
	if !lower {
		violations = append(violations, ViolationNoLowercase)
	}
	if !upper {
		violations = append(violations, ViolationNoUppercase)
	}
	if !digit {
		violations = append(violations, ViolationNoDigit)
	}

	return PasswordCheck{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	if strings.Contains(email, "..") ||
		strings.HasPrefix(email, ".") ||
		strings.HasSuffix(email, ".") ||
		strings.Contains(email, ".@") ||
		strings.Contains(email, "@.") {
		return false
	}
	return emailPattern.MatchString(email)
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
