package validation

import (
	"fmt"
	"regexp"
	"unicode"

	"securecart/internal/config"
	appErrors "securecart/internal/errors"
)

var specialChars = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>_\-+=\[\]\\/;'~` + "`" + `]`)

// HasSpecialChar checks if a string contains at least one special character
func HasSpecialChar(s string) bool {
	return specialChars.MatchString(s)
}

// Password checks a password against the configured policy.
func (v *Validator) Password(field, password string, policy config.PasswordPolicy) {
	minLen := policy.MinLength
	if minLen < MinPasswordLength {
		minLen = MinPasswordLength
	}
	if len(password) < minLen {
		v.AddError(field, fmt.Sprintf("must be at least %d characters long", minLen))
		return
	}
	if len(password) > MaxPasswordLength {
		v.AddError(field, fmt.Sprintf("must not be more than %d characters long", MaxPasswordLength))
		return
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	v.Check(!policy.RequireUppercase || hasUpper, field, "must contain at least one uppercase letter")
	v.Check(!policy.RequireLowercase || hasLower, field, "must contain at least one lowercase letter")
	v.Check(!policy.RequireNumbers || hasNumber, field, "must contain at least one number")
	v.Check(!policy.RequireSymbols || HasSpecialChar(password), field, "must contain at least one special character")
}

// ValidatePassword returns ErrWeakPassword describing the first failure.
func ValidatePassword(password string, policy config.PasswordPolicy) error {
	v := New()
	v.Password("password", password, policy)
	return v.Err(appErrors.ErrWeakPassword)
}
