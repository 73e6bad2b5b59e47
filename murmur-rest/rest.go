// Package murmurrest serves the request/response surface of the chat
// backend: chat lists, message history, mark-as-read, and user lookup.
package murmurrest

import (
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/savaki/apigateway"

	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
)

func Middlewares(service murmurcli.Service, routes chi.Router) chi.Router {
	routes.Use(
		withCORS(),
		withLogger(murmurcli.Logger(service)),
		middleware.Recoverer,
	)
	return routes
}

func Webserver(service murmurcli.Service, routes chi.Router) error {
	logger := murmurcli.Logger(service)

	if murmurcli.CommonOpts.Console {
		logger.Info().Int("port", murmurcli.CommonOpts.Port).Msg("starting http server")
		addr := fmt.Sprintf(":%v", murmurcli.CommonOpts.Port)
		return http.ListenAndServe(addr, routes)
	}

	lambda.Start(apigateway.Wrap(routes, murmurcli.CommonOpts.Env))
	return nil
}

func withCORS() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
	})
}

func withLogger(logger zerolog.Logger) func(handler http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := logger.WithContext(req.Context())
			req = req.WithContext(ctx)
			handler.ServeHTTP(w, req)
		})
	}
}
