// Package decodeerr provides a standardised error envelope for the MCP
// decoder surface, mirroring this codebase's apierr package: stable
// machine-readable codes plus a human-readable message. internal/mcp uses
// it both for the HTTP-level auth/rate-limit middleware (decodeerr.Write
// directly) and for the MCP tool-result error path, where the same
// Response is marshaled into a CallToolResult's structured content.
package decodeerr

import (
	"encoding/json"
	"net/http"
)

// Error codes — stable, machine-readable identifiers (mirrors apierr:
// removing or renaming one is a breaking change, adding one is always
// safe).
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeGraphCycle      = "GRAPH_CYCLE"
	CodeScorerFailed    = "SCORER_FAILED"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeSessionBusy     = "SESSION_BUSY"
	CodeInvalidState    = "INVALID_STATE"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Response is the standard error envelope returned to decoder API clients.
type Response struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Code   string `json:"code"`
	Status int    `json:"status"`
}

// Write serializes an error Response and writes it to w with the
// appropriate HTTP status code.
func Write(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		OK:     false,
		Error:  message,
		Code:   code,
		Status: status,
	})
}

// BadRequest writes a 400 response with the given code and message.
func BadRequest(w http.ResponseWriter, code, msg string) {
	Write(w, http.StatusBadRequest, code, msg)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, code, msg string) {
	Write(w, http.StatusNotFound, code, msg)
}

// Conflict writes a 409 response.
func Conflict(w http.ResponseWriter, code, msg string) {
	Write(w, http.StatusConflict, code, msg)
}

// Internal writes a 500 response.
func Internal(w http.ResponseWriter, msg string) {
	Write(w, http.StatusInternalServerError, CodeInternalError, msg)
}
