package controlplane

import (
	"errors"
	"net/http"

	"github.com/fentz26/chime/internal/lifecycle"
	"github.com/fentz26/chime/internal/store"
)

// Sentinel errors for request decoding.
var (
	ErrInvalidJSON = errors.New("invalid json")
	ErrBadReminder = errors.New("invalid reminder time")
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation),
		errors.Is(err, ErrInvalidJSON),
		errors.Is(err, ErrBadReminder):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrNoEditSession):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
