package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/nahid2887/today/pkg/errors"
	"github.com/rs/zerolog/log"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps an AppError type to its HTTP status. Internal
// details are logged, not returned.
func respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		log.Error().Err(err).Msg("unhandled error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		respondWithError(w, http.StatusBadRequest, appErr.Message)
	case apperrors.ErrorTypeNotFound:
		respondWithError(w, http.StatusNotFound, appErr.Message)
	case apperrors.ErrorTypeConflict:
		respondWithError(w, http.StatusConflict, appErr.Message)
	case apperrors.ErrorTypeUnauthorized:
		respondWithError(w, http.StatusUnauthorized, appErr.Message)
	case apperrors.ErrorTypeExternal:
		log.Warn().Err(err).Msg("upstream failure")
		respondWithError(w, http.StatusBadGateway, appErr.Message)
	case apperrors.ErrorTypeSessionIntegrity:
		log.Error().Err(err).Msg("session store failure")
		respondWithError(w, http.StatusServiceUnavailable, "session state unavailable, please retry")
	default:
		log.Error().Err(err).Msg("internal failure")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
