// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/itinera/itinera/internal/logging"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
