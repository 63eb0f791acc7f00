package validation

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

const (
	MaxNameLen        = 100
	MaxDescriptionLen = 1000
	// MaxMileage верхняя граница пробега одной пары, км
	MaxMileage = 10000
	// MaxRunDistance верхняя граница одной тренировки, км
	MaxRunDistance = 500
)

// ValidateID проверяет идентификатор сущности
func ValidateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return fieldErr(field, "cannot be empty")
	}
	if len(id) > 64 || strings.ContainsAny(id, "/?# ") {
		return fieldErr(field, "malformed id %q", id)
	}
	return nil
}

// ValidateName проверяет обязательное текстовое поле
func ValidateName(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fieldErr(field, "cannot be empty")
	}
	if utf8.RuneCountInString(value) > MaxNameLen {
		return fieldErr(field, "must not exceed %d characters", MaxNameLen)
	}
	return nil
}

// ValidateText проверяет необязательное длинное текстовое поле
func ValidateText(field, value string) error {
	if utf8.RuneCountInString(value) > MaxDescriptionLen {
		return fieldErr(field, "must not exceed %d characters", MaxDescriptionLen)
	}
	return nil
}

// ValidateColor принимает пустую строку или hex-цвет вида #abc / #aabbcc
func ValidateColor(color string) error {
	if color == "" || colorPattern.MatchString(color) {
		return nil
	}
	return fieldErr("color", "must be a hex color like #1e90ff, got %q", color)
}

// ValidateNonNegative проверяет число на конечность и неотрицательность
func ValidateNonNegative(field string, v, upper float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fieldErr(field, "must be a finite number")
	}
	if v < 0 {
		return fieldErr(field, "must not be negative")
	}
	if upper > 0 && v > upper {
		return fieldErr(field, "must not exceed %v", upper)
	}
	return nil
}

// ValidateMileage проверяет пару текущий/максимальный пробег
func ValidateMileage(current, maxMileage float64) error {
	if err := ValidateNonNegative("current_mileage", current, MaxMileage*2); err != nil {
		return err
	}
	if err := ValidateNonNegative("max_mileage", maxMileage, MaxMileage); err != nil {
		return err
	}
	if maxMileage == 0 {
		return fieldErr("max_mileage", "must be greater than zero")
	}
	return nil
}

// ValidateRunDate запрещает пустую дату и даты из будущего (с запасом на часовые пояса)
func ValidateRunDate(date, now time.Time) error {
	if date.IsZero() {
		return fieldErr("date", "cannot be empty")
	}
	if date.After(now.Add(24 * time.Hour)) {
		return fieldErr("date", "cannot be in the future")
	}
	return nil
}

// ValidateOneOf проверяет, что значение входит в список допустимых
func ValidateOneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fieldErr(field, "must be one of %s, got %q", strings.Join(allowed, ", "), value)
}
