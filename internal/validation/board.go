package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// BoardIDPattern определяет допустимый формат идентификатора доски
// Латинские буквы, цифры, дефис и нижнее подчеркивание
// Длина: 3-64 символа
var BoardIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

// ColorPattern принимает цвета в формате #RGB или #RRGGBB
var ColorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

const (
	// MinBoardIDLen минимальная длина идентификатора доски
	MinBoardIDLen = 3
	// MaxBoardIDLen максимальная длина идентификатора доски
	MaxBoardIDLen = 64
	// MaxDisplayNameLen максимальная длина отображаемого имени (в символах)
	MaxDisplayNameLen = 32
	// MaxBoardNameLen максимальная длина названия доски (в символах)
	MaxBoardNameLen = 120
)

// ValidateBoardID проверяет, что идентификатор доски соответствует требованиям
func ValidateBoardID(boardID string) error {
	if boardID == "" {
		return fmt.Errorf("board id cannot be empty")
	}

	if len(boardID) < MinBoardIDLen {
		return fmt.Errorf("board id must be at least %d characters long", MinBoardIDLen)
	}

	if len(boardID) > MaxBoardIDLen {
		return fmt.Errorf("board id must not exceed %d characters", MaxBoardIDLen)
	}

	if !BoardIDPattern.MatchString(boardID) {
		return fmt.Errorf("board id can only contain letters, numbers, dashes and underscores")
	}

	return nil
}

// ValidateColor проверяет hex-цвет (#RGB или #RRGGBB)
func ValidateColor(color string) error {
	if color == "" {
		return fmt.Errorf("color cannot be empty")
	}

	if !ColorPattern.MatchString(color) {
		return fmt.Errorf("color must be in #RGB or #RRGGBB format, got %q", color)
	}

	return nil
}

// ValidateDisplayName проверяет имя участника, которое видят другие клиенты
func ValidateDisplayName(name string) error {
	if name == "" {
		return fmt.Errorf("display name cannot be empty")
	}

	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return fmt.Errorf("display name must not exceed %d characters", MaxDisplayNameLen)
	}

	return nil
}

// ValidateBoardName проверяет название доски
func ValidateBoardName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("board name cannot be empty")
	}

	if utf8.RuneCountInString(name) > MaxBoardNameLen {
		return fmt.Errorf("board name must not exceed %d characters", MaxBoardNameLen)
	}

	return nil
}
