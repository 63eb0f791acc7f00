package validation

import "regexp"

// UsernamePattern определяет допустимый формат username:
// латинские буквы, цифры и нижнее подчеркивание, длина 3-32 символа
var UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 32
	MinPasswordLen = 8
	MaxPasswordLen = 72 // ограничение bcrypt
)

// ValidateUsername проверяет, что username соответствует требованиям
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return fieldErr("username", "cannot be empty")
	case len(username) < MinUsernameLen:
		return fieldErr("username", "must be at least %d characters long", MinUsernameLen)
	case len(username) > MaxUsernameLen:
		return fieldErr("username", "must not exceed %d characters", MaxUsernameLen)
	case !UsernamePattern.MatchString(username):
		return fieldErr("username", "can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)")
	}
	return nil
}

// ValidatePassword проверяет минимальные требования к паролю
func ValidatePassword(password string) error {
	switch {
	case password == "":
		return fieldErr("password", "cannot be empty")
	case len(password) < MinPasswordLen:
		return fieldErr("password", "must be at least %d characters long", MinPasswordLen)
	case len(password) > MaxPasswordLen:
		return fieldErr("password", "must not exceed %d bytes", MaxPasswordLen)
	}
	return nil
}
