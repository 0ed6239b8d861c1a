package handlers

import (
	"errors"
	"net/http"

	"silent-auction/internal/domain"
	"silent-auction/pkg/logger"
)

// UserIDHeader carries the caller's identity, already verified upstream.
const UserIDHeader = "X-User-ID"

type errorResponse struct {
	Error string `json:"error"`
}

// StatusForError maps domain errors to HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAuctionClosed), errors.Is(err, domain.ErrBidTooLow):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal detail on server-side failures.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusServiceUnavailable:
		return "temporarily unavailable, please retry"
	case http.StatusInternalServerError:
		return "internal server error"
	default:
		return err.Error()
	}
}

// logError logs rejections at info and faults at error.
func logError(log logger.Logger, handler string, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Error(handler+" failed", "status", status, "error", err)
		return
	}
	log.Info(handler+" rejected", "status", status, "reason", err.Error())
}
