package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/golang/gddo/httputil"
)

const (
	contentTypePlainText = "text/plain"
	contentTypeJSON      = "application/json"
)

// HandlerFunc is an http.HandlerFunc that reports failures by returning them.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// Handler adapts h. Returned render.Renderer errors are rendered as they are, any other
// error becomes a 500 ErrorResponse. Responses are never cacheable since they reflect
// the node's live state and signing history.
func Handler(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		err := h(w, r)
		if err == nil {
			return
		}
		var renderer render.Renderer
		if !errors.As(err, &renderer) {
			renderer = Error(err)
		}
		if renderErr := render.Render(w, r, renderer); renderErr != nil {
			http.Error(w, renderErr.Error(), http.StatusInternalServerError)
		}
	}
}

// Render writes response as JSON, or as plain text when the client prefers it and
// response implements fmt.Stringer.
func Render(w http.ResponseWriter, r *http.Request, response any) error {
	contentType := httputil.NegotiateContentType(
		r,
		[]string{contentTypePlainText, contentTypeJSON},
		contentTypeJSON,
	)

	if stringer, ok := response.(fmt.Stringer); ok && contentType == contentTypePlainText {
		render.PlainText(w, r, stringer.String())
		return nil
	}
	render.JSON(w, r, response)
	return nil
}
