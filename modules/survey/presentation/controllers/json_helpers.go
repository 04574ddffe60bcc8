package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/orgpulse/orgpulse/pkg/serrors"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if coded, ok := err.(*serrors.Error); ok {
		writeJSON(w, status, map[string]any{
			"code":    coded.Code,
			"message": coded.Message,
		})
		return
	}
	writeJSON(w, status, map[string]any{
		"code":    "INTERNAL",
		"message": err.Error(),
	})
}
