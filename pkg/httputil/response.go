package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/platinummonkey/campus/pkg/apierrors"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message   string      `json:"message"`
	ErrorCode int         `json:"errorCode"`
	Raw       interface{} `json:"raw"`
}

// NewErrorResponse renders err the way WriteAPIError sends it
func NewErrorResponse(err error) (int, ErrorResponse) {
	apiErr := apierrors.From(err)
	return apiErr.Status, ErrorResponse{
		Message:   fmt.Sprintf("%d | %s", apiErr.Code, apiErr.Message),
		ErrorCode: apiErr.Code,
		Raw:       apiErr.Raw,
	}
}

// WriteAPIError writes err as an ErrorResponse with its mapped status
func WriteAPIError(w http.ResponseWriter, err error) {
	status, body := NewErrorResponse(err)
	_ = WriteJSON(w, status, body)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
