package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

func Err(err error) zap.Field {
	return zap.Error(err)
}

type ErrorResponse struct {
	Status    int               `json:"status"`
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Timestamp int64             `json:"timestamp"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func NewErrorResponse(code int, message string) ErrorResponse {
	return ErrorResponse{
		Status:    code,
		Error:     http.StatusText(code),
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status":500,"error":"Internal Server Error","message":"failed to encode response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func RespondWithErrorJSON(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, NewErrorResponse(code, message))
}

func RespondWithValidationErrors(w http.ResponseWriter, message string, fields map[string]string) {
	resp := NewErrorResponse(http.StatusBadRequest, message)
	resp.Errors = fields
	RespondWithJSON(w, http.StatusBadRequest, resp)
}
