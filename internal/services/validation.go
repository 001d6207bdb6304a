package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopcore/ecommerce-api/internal/models"
)

const (
	minUsernameLength = 4
	maxUsernameLength = 64
	minPasswordLength = 6
	maxPasswordBytes  = 72
	maxEmailLength    = 255
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail trims and lowercases an email so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	return len(email) <= maxEmailLength && emailRegex.MatchString(email)
}

func checkUsername(v *ValidationError, username string) {
	n := utf8.RuneCountInString(username)
	switch {
	case username == "":
		v.Add("username", "username is required")
	case n < minUsernameLength:
		v.Add("username", "username must be at least 4 characters")
	case n > maxUsernameLength:
		v.Add("username", "username must be at most 64 characters")
	}
}

func checkEmail(v *ValidationError, email string) {
	switch {
	case email == "":
		v.Add("email", "email is required")
	case !isValidEmail(email):
		v.Add("email", "invalid email format")
	}
}

func checkNewPassword(v *ValidationError, field, password string) {
	switch {
	case password == "":
		v.Add(field, "password is required")
	case utf8.RuneCountInString(password) < minPasswordLength:
		v.Add(field, "password must be at least 6 characters")
	case len(password) > maxPasswordBytes:
		v.Add(field, "password must be at most 72 bytes")
	}
}

func validateRegistration(req *models.UserRegistration) error {
	v := &ValidationError{}
	checkUsername(v, req.Username)
	checkEmail(v, req.Email)
	checkNewPassword(v, "password", req.Password)
	if v.Empty() {
		return nil
	}
	return v
}

func validateLogin(req *models.UserLogin) error {
	v := &ValidationError{}
	checkEmail(v, req.Email)
	if req.Password == "" {
		v.Add("password", "password is required")
	}
	if v.Empty() {
		return nil
	}
	return v
}

func validatePatch(patch *models.UserPatch) error {
	v := &ValidationError{}
	if patch.Username != nil {
		checkUsername(v, *patch.Username)
	}
	if patch.Email != nil {
		checkEmail(v, *patch.Email)
	}
	if v.Empty() {
		return nil
	}
	return v
}

func validatePasswordChange(req *models.PasswordChange) error {
	v := &ValidationError{}
	if req.OldPassword == "" {
		v.Add("oldPassword", "old password is required")
	}
	checkNewPassword(v, "newPassword", req.NewPassword)
	if v.Empty() {
		return nil
	}
	return v
}
