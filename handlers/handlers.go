// Package handlers is the read-only JSON status surface. It never writes to
// the store; the sync loop is the only writer.
package handlers

import (
	"encoding/json"
	"net/http"
)

func respondJSON(rw http.ResponseWriter, v interface{}) {
	rw.Header().Set("content-type", "application/json; charset=utf-8")

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		panic(err)
	}
}
