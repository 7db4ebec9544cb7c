package response

import (
	"encoding/json"
	"net/http"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// Verification is the body returned by the verify endpoint. Expiry is only
// present when the key was accepted.
type Verification struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	Expiry  *int64 `json:"expiry,omitempty"`
}

// WriteVerified writes a 200 response for an accepted key.
func WriteVerified(w http.ResponseWriter, message string, expiry int64) {
	WriteJSON(w, http.StatusOK, Verification{Valid: true, Message: message, Expiry: &expiry})
}

// WriteRejected writes a verification failure with the given status.
func WriteRejected(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Verification{Valid: false, Message: message})
}
