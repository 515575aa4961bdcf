// Package middleware provides HTTP middleware for the site API.
package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns middleware that handles CORS headers for the JSON API.
// Credentials are only allowed when every origin is explicit.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowCredentials := len(allowedOrigins) > 0
	for _, o := range allowedOrigins {
		if o == "*" {
			allowCredentials = false
			break
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	})
}
