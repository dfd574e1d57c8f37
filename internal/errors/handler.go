// Package errors provides secure error handling utilities
package errors

import (
	"encoding/json"
	"log"
	"net/http"

	"gemini-chat-relay/internal/config"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error string `json:"error"`
	// RequestID is included in development/staging for debugging
	RequestID string `json:"request_id,omitempty"`
}

// Handler provides secure error handling based on configuration
type Handler struct {
	config *config.Config
}

// NewHandler creates a new error handler with the given configuration
func NewHandler(cfg *config.Config) *Handler {
	return &Handler{
		config: cfg,
	}
}

// HandleValidationError handles input validation errors. The message
// is user-facing and returned as-is in every environment.
func (h *Handler) HandleValidationError(w http.ResponseWriter, r *http.Request, message string, requestID string) {
	response := ErrorResponse{
		Error:     message,
		RequestID: h.getRequestID(requestID),
	}

	h.logError("VALIDATION_ERROR", nil, message, requestID, r)
	h.writeJSONError(w, http.StatusBadRequest, response)
}

// HandleUpstreamError handles failures of the external model service.
// Details are only exposed outside production.
func (h *Handler) HandleUpstreamError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	message := "Failed to generate response"
	if h.config.IsDevelopment() {
		message = "Failed to generate response: " + err.Error()
	}

	response := ErrorResponse{
		Error:     message,
		RequestID: h.getRequestID(requestID),
	}

	h.logError("UPSTREAM_ERROR", err, "", requestID, r)
	h.writeJSONError(w, http.StatusInternalServerError, response)
}

// HandleInternalError handles internal server errors
func (h *Handler) HandleInternalError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	message := "An internal error occurred"
	if h.config.IsDevelopment() {
		message = "An internal error occurred: " + err.Error()
	}

	response := ErrorResponse{
		Error:     message,
		RequestID: h.getRequestID(requestID),
	}

	h.logError("INTERNAL_ERROR", err, "", requestID, r)
	h.writeJSONError(w, http.StatusInternalServerError, response)
}

// writeJSONError writes an error response as JSON
func (h *Handler) writeJSONError(w http.ResponseWriter, code int, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding error response: %v", err)
	}
}

// logError logs errors with context
func (h *Handler) logError(errorType string, err error, message string, requestID string, r *http.Request) {
	logData := map[string]interface{}{
		"type":       errorType,
		"request_id": requestID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"user_agent": r.Header.Get("User-Agent"),
		"remote_ip":  getClientIP(r),
	}

	if err != nil {
		logData["error"] = err.Error()
	}
	if message != "" {
		logData["message"] = message
	}

	if h.config.App.LogFormat == "json" {
		if jsonLog, jsonErr := json.Marshal(logData); jsonErr == nil {
			log.Printf("ERROR: %s", string(jsonLog))
		} else {
			log.Printf("ERROR: %s - %v", errorType, err)
		}
	} else {
		log.Printf("ERROR [%s] %s %s: %v (request_id: %s)",
			errorType, r.Method, r.URL.Path, err, requestID)
	}
}

// getRequestID returns request ID for responses, omitted in production
func (h *Handler) getRequestID(requestID string) string {
	if h.config.IsProduction() {
		return ""
	}
	return requestID
}

// getClientIP extracts the real client IP from request headers
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// Fall back to RemoteAddr
	return r.RemoteAddr
}
