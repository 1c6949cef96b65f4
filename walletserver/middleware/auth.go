package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"rune-indexer/core"
)

// authHeader is the API key header name.
const authHeader = "x-api-key"

// exemptSuffixes lists path suffixes that never require an API key: the
// load-balancer healthcheck and the status snapshot are both meant to be
// pollable without credentials.
var exemptSuffixes = []string{"/healthcheck", "/status"}

// RequireAPIKey builds middleware that authenticates every request against
// reg, skipping the exempt paths above.
func RequireAPIKey(reg *core.APIKeyRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, suffix := range exemptSuffixes {
				if strings.HasSuffix(r.URL.Path, suffix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			key := r.Header.Get(authHeader)
			if key == "" {
				writeAPIError(w, core.AccessDenied())
				return
			}
			if apiErr := reg.Authenticate(key); apiErr != nil {
				writeAPIError(w, apiErr)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAPIError(w http.ResponseWriter, apiErr *core.ApiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPCode)
	_ = json.NewEncoder(w).Encode(core.ErrorResponse{Error: apiErr})
}
