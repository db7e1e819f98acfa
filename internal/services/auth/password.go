// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the shortest admin password accepted.
const MinPasswordLength = 12

// PasswordError lists every rule a password broke.
type PasswordError struct {
	Problems []string
}

func (e *PasswordError) Error() string {
	if len(e.Problems) == 0 {
		return "password does not meet requirements"
	}
	return e.Problems[0]
}

// CheckPassword validates an admin password. email is used to reject
// passwords derived from the account name.
func CheckPassword(password, email string) error {
	var problems []string

	if utf8.RuneCountInString(password) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters long", MinPasswordLength))
	}
	if isEntirelyNumeric(password) {
		problems = append(problems, "password cannot be entirely numeric")
	}
	if local, _, _ := strings.Cut(email, "@"); len(local) >= 3 &&
		strings.Contains(strings.ToLower(password), strings.ToLower(local)) {
		problems = append(problems, "password is too similar to the e-mail address")
	}

	if problems != nil {
		return &PasswordError{Problems: problems}
	}
	return nil
}

func isEntirelyNumeric(password string) bool {
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(password) > 0
}
