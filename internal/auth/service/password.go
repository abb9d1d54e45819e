package service

import (
	"strings"
	"unicode/utf8"
)

const (
	PasswordMinLength = 6
	PasswordMaxLength = 14

	// PasswordSpecialChars is the only set that counts as "special".
	PasswordSpecialChars = "-!$#%"

	// PasswordMinCategories of upper, lower, digit and special must appear.
	PasswordMinCategories = 3
)

const (
	violationTooShort   = "password must be at least 6 characters long"
	violationTooLong    = "password must be at most 14 characters long"
	violationCategories = "password must contain at least 3 of: uppercase letters, lowercase letters, digits, special characters (- ! $ # %)"
)

// PasswordRules describes the policy for display.
type PasswordRules struct {
	MinLength     int      `json:"minLength"`
	MaxLength     int      `json:"maxLength"`
	MinCategories int      `json:"minCategories"`
	Categories    []string `json:"categories"`
}

// PasswordRequirements returns the static policy description shown to
// users before they pick a password.
func PasswordRequirements() PasswordRules {
	return PasswordRules{
		MinLength:     PasswordMinLength,
		MaxLength:     PasswordMaxLength,
		MinCategories: PasswordMinCategories,
		Categories: []string{
			"Uppercase letters (A-Z)",
			"Lowercase letters (a-z)",
			"Digits (0-9)",
			"Special characters (- ! $ # %)",
		},
	}
}

// CheckPasswordComplexity returns every rule pw violates, or nil when it
// is acceptable. Length counts characters, not bytes.
func CheckPasswordComplexity(pw string) []string {
	var violations []string

	n := utf8.RuneCountInString(pw)
	if n < PasswordMinLength {
		violations = append(violations, violationTooShort)
	}
	if n > PasswordMaxLength {
		violations = append(violations, violationTooLong)
	}

	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSpecialChars, r):
			special = true
		}
	}

	categories := 0
	for _, ok := range []bool{upper, lower, digit, special} {
		if ok {
			categories++
		}
	}
	if categories < PasswordMinCategories {
		violations = append(violations, violationCategories)
	}

	return violations
}

func checkPassword(pw string) error {
	if v := CheckPasswordComplexity(pw); len(v) > 0 {
		return &PasswordPolicyError{Violations: v}
	}
	return nil
}
