package rest

import (
	"encoding/json"
	"mime"
	"net/http"
)

// Error codes returned to clients. Raw errors are logged, never echoed.
const (
	errCodeTryAgain   = "TRY_AGAIN"
	errCodeBadRequest = "BAD_REQUEST"
	errCodeNotFound   = "NOT_FOUND"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeErrorWithCode(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeTryAgain is the generic failure every user-facing error collapses to.
func writeTryAgain(w http.ResponseWriter, status int) {
	writeErrorWithCode(w, status, "something went wrong, try again", errCodeTryAgain)
}

func isJSONContentType(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
