package response

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	Status  string      `json:"status"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// SubmissionErrors carries form re-render context for a rejected
// submission: per-field messages, an optional form-level message, and
// the staging token the client should send back on retry.
type SubmissionErrors struct {
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	FormError   string            `json:"form_error,omitempty"`
	TempPhoto   string            `json:"temp_photo,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(data)
}

func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errorMessages string
	for _, err := range errs {
		errorMessages += err.Field() + ": " + err.Tag() + "; "
	}

	return Response{
		Status: StatusError,
		Error:  errorMessages,
	}
}

// SubmissionRejected wraps recoverable intake failures so the client
// can re-render the form without losing user input.
func SubmissionRejected(errs SubmissionErrors) Response {
	msg := errs.FormError
	if msg == "" {
		msg = "submission failed validation"
	}
	return Response{
		Status: StatusError,
		Error:  msg,
		Data:   errs,
	}
}

func RequestOK(message string, data interface{}) Response {
	return Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	}
}
