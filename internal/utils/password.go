package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword securely hashes a plain text password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a plain text password with a stored hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidatePasswordPolicy is applied when hashes are minted for the static
// directory. Rules: >= 10 characters, lower, upper, digit and special
// character, no common weak substrings, none of disallowContains.
func ValidatePasswordPolicy(pw string, disallowContains ...string) (ok bool, reason string) {
	if len(pw) < 10 {
		return false, "password must be at least 10 characters"
	}
	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasLower || !hasUpper || !hasDigit || !hasSpecial {
		return false, "password must include lowercase, uppercase, digit, and special character"
	}
	lower := strings.ToLower(pw)
	for _, w := range []string{"password", "123456", "qwerty", "letmein", "admin"} {
		if strings.Contains(lower, w) {
			return false, "password is too common/guessable"
		}
	}
	for _, dis := range disallowContains {
		if dis != "" && strings.Contains(lower, strings.ToLower(dis)) {
			return false, "password must not contain personal information"
		}
	}
	return true, ""
}
