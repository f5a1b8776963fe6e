package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/linesmerrill/esg-identity-api/api"
	"github.com/linesmerrill/esg-identity-api/apperrors"
	"github.com/linesmerrill/esg-identity-api/models"
)

// statusFor maps an error kind onto its HTTP status code
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindInvalidState, apperrors.KindDuplicatePendingInvitation, apperrors.KindDuplicateAccount:
		return http.StatusConflict
	case apperrors.KindExpired:
		return http.StatusGone
	case apperrors.KindValidation, apperrors.KindInvalidRole:
		return http.StatusBadRequest
	case apperrors.KindStoreUnavailable, apperrors.KindCodeGenerationExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().With("error", err).Error("failed to encode response")
	}
}

// writeError writes the ErrorResponse envelope for err. Internal failures are logged
// with their cause and reported without it.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	status := statusFor(kind)
	message := apperrors.MessageOf(err)

	fields := []interface{}{
		"requestId", api.RequestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"code", kind,
		"error", err,
	}
	switch {
	case kind == apperrors.KindPartialMigration:
		zap.S().Errorw("request left data needing reconciliation", fields...)
	case status >= http.StatusInternalServerError && kind != apperrors.KindStoreUnavailable && kind != apperrors.KindCodeGenerationExhausted:
		zap.S().Errorw("request failed", fields...)
		message = "internal error"
	case status >= http.StatusInternalServerError:
		zap.S().Warnw("request failed", fields...)
	default:
		zap.S().Debugw("request rejected", fields...)
	}

	if apperrors.Retryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, models.ErrorResponse{
		Success: false,
		Error:   message,
		Code:    string(kind),
	})
}

// decodeBody reads a JSON request body into v. An empty body is allowed when
// optional is set.
func decodeBody(r *http.Request, v interface{}, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && optional:
		return nil
	default:
		return apperrors.Wrap(err, apperrors.KindValidation, "malformed request body")
	}
}
