package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/elo-arena/brackets"
	"github.com/Dosada05/elo-arena/matchmaking"
	"github.com/Dosada05/elo-arena/middleware"
	"github.com/Dosada05/elo-arena/repositories"
	"github.com/Dosada05/elo-arena/services"
)

type jsonResponse map[string]interface{}

// lockRetryAfter is the Retry-After hint sent with 503 on lock contention, in seconds.
const lockRetryAfter = "1"

const maxBodyBytes = 1_048_576 // 1MB

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBodyBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBodyBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err) // ошибка программиста: передан не указатель
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

// errorReporter writes error envelopes and logs server-side failures.
type errorReporter struct {
	logger *slog.Logger
}

func newErrorReporter(logger *slog.Logger) errorReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return errorReporter{logger: logger}
}

func (e errorReporter) errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}, headers http.Header) {
	if err := writeJSON(w, status, jsonResponse{"error": message}, headers); err != nil {
		e.logger.Error("failed to write error response",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (e errorReporter) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	e.logger.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	message := "the server encountered a problem and could not process your request"
	e.errorResponse(w, r, http.StatusInternalServerError, message, nil)
}

func (e errorReporter) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	e.errorResponse(w, r, http.StatusBadRequest, err.Error(), nil)
}

func (e errorReporter) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	e.errorResponse(w, r, http.StatusNotFound, err.Error(), nil)
}

func (e errorReporter) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	e.errorResponse(w, r, http.StatusConflict, err.Error(), nil)
}

func (e errorReporter) unprocessableResponse(w http.ResponseWriter, r *http.Request, err error) {
	e.errorResponse(w, r, http.StatusUnprocessableEntity, err.Error(), nil)
}

func (e errorReporter) unauthorizedResponse(w http.ResponseWriter, r *http.Request, message string) {
	e.errorResponse(w, r, http.StatusUnauthorized, message, nil)
}

func (e errorReporter) forbiddenResponse(w http.ResponseWriter, r *http.Request, err error) {
	e.errorResponse(w, r, http.StatusForbidden, err.Error(), nil)
}

func (e errorReporter) unavailableResponse(w http.ResponseWriter, r *http.Request, err error) {
	e.logger.Warn("request rejected on lock contention", slog.String("path", r.URL.Path), slog.Any("error", err))
	e.errorResponse(w, r, http.StatusServiceUnavailable, err.Error(), http.Header{"Retry-After": []string{lockRetryAfter}})
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в HTTP-ответы
func (e errorReporter) mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	// не найдено
	case errors.Is(err, repositories.ErrProjectNotFound),
		errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrTournamentNotFound),
		errors.Is(err, brackets.ErrMatchNotFound):
		e.notFoundResponse(w, r, err)

	// конфликты состояния
	case errors.Is(err, repositories.ErrProjectExists),
		errors.Is(err, brackets.ErrMatchAlreadyCompleted),
		errors.Is(err, brackets.ErrNoPlayableMatch),
		errors.Is(err, brackets.ErrTournamentAlreadyCompleted),
		errors.Is(err, services.ErrActiveTournamentExists),
		errors.Is(err, services.ErrItemInUse),
		errors.Is(err, services.ErrDuplicateItems):
		e.conflictResponse(w, r, err)

	// невалидные данные
	case errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, services.ErrInvalidBattleResult),
		errors.Is(err, brackets.ErrInvalidWinner),
		errors.Is(err, brackets.ErrInvalidSeedCount),
		errors.Is(err, brackets.ErrDuplicateSeed),
		errors.Is(err, matchmaking.ErrUnknownStrategy):
		e.badRequestResponse(w, r, err)
	case errors.Is(err, matchmaking.ErrInsufficientItems):
		e.unprocessableResponse(w, r, err)

	case errors.Is(err, services.ErrForbiddenOperation):
		e.forbiddenResponse(w, r, err)

	case errors.Is(err, repositories.ErrLockTimeout):
		e.unavailableResponse(w, r, err)
	case errors.Is(err, services.ErrArchiveDisabled):
		e.errorResponse(w, r, http.StatusNotImplemented, err.Error(), nil)

	// ErrStorageIO, ErrCorruptDocument и всё остальное
	default:
		e.serverErrorResponse(w, r, err)
	}
}

// ownerID extracts the authenticated user or writes 401.
func (e errorReporter) ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		e.unauthorizedResponse(w, r, "authentication required")
		return "", false
	}
	return id, true
}

func getIDFromURL(r *http.Request, param string) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, param))
	if id == "" {
		return "", fmt.Errorf("missing %s in URL", param)
	}
	return id, nil
}

// readPagination parses limit and offset query parameters; absent values are zero.
func readPagination(r *http.Request) (limit, offset int, err error) {
	query := r.URL.Query()
	if s := query.Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit <= 0 {
			return 0, 0, errors.New("invalid limit query parameter")
		}
	}
	if s := query.Get("offset"); s != "" {
		offset, err = strconv.Atoi(s)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("invalid offset query parameter")
		}
	}
	return limit, offset, nil
}
