package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден
	ErrItemNotFound       = errors.New("item not found")
	ErrTournamentNotFound = errors.New("tournament not found")

	// Ошибки валидации
	ErrValidationFailed    = errors.New("validation failed")
	ErrInvalidBattleResult = errors.New("invalid battle result")
	ErrDuplicateItems      = errors.New("duplicate item")

	// Ошибки конфликтов состояния
	ErrItemInUse              = errors.New("item is part of an unfinished tournament")
	ErrActiveTournamentExists = errors.New("project already has a tournament in progress")

	// Ошибки авторизации
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Экспорт
	ErrArchiveDisabled = errors.New("export archive storage is not configured")
)
