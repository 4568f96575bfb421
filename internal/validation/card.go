// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"time"
	"unicode"

	"github.com/walleai/walle-agent/internal/model"
)

// openDateLayout — формат даты открытия карты в хранилище.
const openDateLayout = "2006-01-02"

// NormalizeUserID приводит e-mail к каноническому идентификатору пользователя.
func NormalizeUserID(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail проверяет, что строка похожа на адрес электронной почты.
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\n")
}

// IsValidLastFour проверяет последние четыре цифры номера карты.
// Пустое значение допустимо: хранилище подставит "0000".
func IsValidLastFour(lastFour string) bool {
	if lastFour == "" {
		return true
	}
	if len(lastFour) != 4 {
		return false
	}
	for _, ch := range lastFour {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// IsValidNetwork проверяет, что платёжная система входит в список допустимых.
func IsValidNetwork(network model.Network) bool {
	for _, n := range model.Networks {
		if n == network {
			return true
		}
	}
	return false
}

// IsValidOpenDate проверяет дату открытия карты. Пустая строка означает
// неизвестную дату и считается корректной.
func IsValidOpenDate(openDate string) bool {
	if openDate == "" {
		return true
	}
	_, err := time.Parse(openDateLayout, openDate)
	return err == nil
}
