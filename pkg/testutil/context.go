package testutil

import (
	"net/http"

	"disposisi/pkg/domain"
	"disposisi/pkg/requestcontext"
)

// WithActor adds an authenticated actor to the request context, which is
// what the auth middleware does for requests with a valid bearer token.
func WithActor(req *http.Request, actor domain.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}
