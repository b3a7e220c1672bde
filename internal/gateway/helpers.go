/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package gateway

import (
	"encoding/json"
	"net/http"
)

const maxBodyBytes = 1 << 20

// writeError writes an OpenAI-style error response.
func writeError(w http.ResponseWriter, status int, msg, errType, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{Message: msg, Type: errType, Code: code},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON body into dst, rejecting unknown fields. On
// failure it has already written a 400.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "invalid_request_error", "invalid_body")
		return false
	}
	return true
}

// rawToAny decodes an optional JSON payload into plain Go values.
func rawToAny(raw json.RawMessage) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
