package api

import (
	"net/http"

	"github.com/go-chi/render"
)

type ErrorResponse struct {
	Err  error `json:"-"` // low-level runtime error
	Code int   `json:"-"` // http response status code

	Status  string `json:"status"`          // user-level status message
	Message string `json:"error,omitempty"` // application-level error message, for debugging
}

func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Code)
	return nil
}

func (e *ErrorResponse) Error() string {
	if e.Err == nil {
		return e.Status
	}
	return e.Err.Error()
}

func newErrorResponse(err error, code int) *ErrorResponse {
	return &ErrorResponse{
		Err:     err,
		Code:    code,
		Status:  http.StatusText(code),
		Message: err.Error(),
	}
}

func BadRequestError(err error) *ErrorResponse {
	return newErrorResponse(err, http.StatusBadRequest)
}

// UnavailableError reports a dependency of the node, e.g. the beacon node, is down.
func UnavailableError(err error) *ErrorResponse {
	return newErrorResponse(err, http.StatusServiceUnavailable)
}

func Error(err error) *ErrorResponse {
	return newErrorResponse(err, http.StatusInternalServerError)
}

var ErrNotFound = &ErrorResponse{Code: http.StatusNotFound, Status: "Resource not found."}
