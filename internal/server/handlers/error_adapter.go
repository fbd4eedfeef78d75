package handlers

import (
	"net/http"

	apperrors "github.com/quizai/quizai/internal/errors"
)

// ErrorResponder writes err as a JSON error response.
type ErrorResponder func(http.ResponseWriter, *http.Request, error)

// httpErrorResponder is replaced by the server package so handlers and
// router-level errors share one code path.
var httpErrorResponder ErrorResponder = apperrors.RespondWithError

// SetHTTPErrorResponder installs responder; nil restores the default.
func SetHTTPErrorResponder(responder ErrorResponder) {
	if responder == nil {
		responder = apperrors.RespondWithError
	}
	httpErrorResponder = responder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
