package http

import "net/http"

// NotFoundHandler is the catch-all route. Unknown paths get the same JSON
// error envelope as every other failure so clients never have to parse the
// default plain-text 404.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
}
