package httputil

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

// RespondError writes a JSON error body, matching the rest of the status
// surface.
func RespondError(rw http.ResponseWriter, statusCode int, message string) {
	rw.Header().Set("content-type", "application/json; charset=utf-8")
	rw.WriteHeader(statusCode)

	if err := json.NewEncoder(rw).Encode(errorResponse{Error: message}); err != nil {
		panic(err)
	}
}

func NotFound(rw http.ResponseWriter, r *http.Request) {
	RespondError(rw, http.StatusNotFound, "not found")
}
