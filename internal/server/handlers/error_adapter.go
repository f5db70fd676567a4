package handlers

import (
	"net/http"

	apperrors "github.com/iocgate/iocgate/internal/errors"
)

// httpErrorResponder writes error envelopes for every handler in this
// package. The server package swaps it for its centralized HandleError at
// startup so handler errors and router-level 404/405s share one shape.
var httpErrorResponder = defaultHTTPErrorResponder

func defaultHTTPErrorResponder(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

// SetHTTPErrorResponder installs the responder used by all handlers in this
// package. Passing nil restores the default.
func SetHTTPErrorResponder(responder func(http.ResponseWriter, *http.Request, error)) {
	if responder == nil {
		httpErrorResponder = defaultHTTPErrorResponder
		return
	}
	httpErrorResponder = responder
}

// ResetHTTPErrorResponder restores the default responder. Tests that call
// server.New use this to avoid leaking the injected responder.
func ResetHTTPErrorResponder() {
	SetHTTPErrorResponder(nil)
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
