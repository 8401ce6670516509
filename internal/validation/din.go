// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

// DINLength задаёт длину идентификационного номера препарата.
const DINLength = 8

// NormalizeDIN удаляет пробелы и дефисы из номера препарата.
func NormalizeDIN(din string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(din))
}

// IsValidDIN проверяет, что номер препарата состоит ровно из восьми цифр.
func IsValidDIN(din string) bool {
	din = NormalizeDIN(din)
	if len(din) != DINLength {
		return false
	}

	for _, ch := range din {
		if !unicode.IsDigit(ch) {
			return false
		}
	}

	return true
}

// NormalizeEmail приводит адрес почты к каноническому виду для поиска.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
