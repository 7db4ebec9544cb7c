package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/edvin/keyservice/internal/api/request"
	"github.com/edvin/keyservice/internal/api/response"
	"github.com/edvin/keyservice/internal/core"
	"github.com/edvin/keyservice/internal/metrics"
)

const (
	msgVerified      = "Key verified."
	msgKeyRequired   = "Key is required."
	msgInvalidKey    = "Invalid key."
	msgKeyExpired    = "Key expired."
	msgInvalidBody   = "Invalid request body."
	msgBodyTooLarge  = "Request body too large."
	msgInternalError = "internal server error"
)

// Key handles the access key endpoints.
type Key struct {
	svc *core.KeyService
}

// NewKey creates a new Key handler.
func NewKey(svc *core.KeyService) *Key {
	return &Key{svc: svc}
}

// Generate issues a new key. Any request body is ignored.
func (h *Key) Generate(w http.ResponseWriter, r *http.Request) {
	key, err := h.svc.Generate(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("generate key failed")
		response.WriteError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	response.WriteJSON(w, http.StatusOK, key)
}

// Verify checks a key and optionally binds a device id to it.
func (h *Key) Verify(w http.ResponseWriter, r *http.Request) {
	var req request.VerifyKey
	if err := request.Decode(r, &req); err != nil {
		switch {
		case request.IsValidationError(err):
			metrics.KeyVerifications.WithLabelValues(metrics.ResultMissingKey).Inc()
			response.WriteRejected(w, http.StatusBadRequest, msgKeyRequired)
		case request.IsTooLarge(err):
			response.WriteRejected(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		default:
			response.WriteRejected(w, http.StatusBadRequest, msgInvalidBody)
		}
		return
	}

	rec, err := h.svc.Verify(r.Context(), req.Key, req.DeviceID)
	switch {
	case err == nil:
		response.WriteVerified(w, msgVerified, rec.Expiry)
	case errors.Is(err, core.ErrKeyRequired):
		response.WriteRejected(w, http.StatusBadRequest, msgKeyRequired)
	case errors.Is(err, core.ErrKeyNotFound):
		response.WriteRejected(w, http.StatusNotFound, msgInvalidKey)
	case errors.Is(err, core.ErrKeyExpired):
		response.WriteRejected(w, http.StatusUnauthorized, msgKeyExpired)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("verify key failed")
		response.WriteError(w, http.StatusInternalServerError, msgInternalError)
	}
}
