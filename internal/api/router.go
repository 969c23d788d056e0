// review-service/internal/api/router.go
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures the cross-cutting middleware around the API.
type RouterOptions struct {
	CORSOrigins       []string
	AuthRateLimit     int
	AuthRateWindow    time.Duration
	RateLimitDisabled bool
}

// NewHTTPRouter wires every endpoint onto a gorilla/mux router.
func NewHTTPRouter(h *HTTPHandler, opts RouterOptions) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(h.notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)
	router.Use(h.RequestIDMiddleware, h.RecoverMiddleware, h.MetricsMiddleware)

	router.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(h.AuthMiddleware)

	authRouter := v1.PathPrefix("/auth").Subrouter()
	if !opts.RateLimitDisabled && opts.AuthRateLimit > 0 {
		authRouter.Use(httprate.LimitByIP(opts.AuthRateLimit, opts.AuthRateWindow))
	}
	authRouter.HandleFunc("/signup", h.Signup).Methods(http.MethodPost)
	authRouter.HandleFunc("/token", h.IssueToken).Methods(http.MethodPost)
	authRouter.HandleFunc("/token/refresh", h.RefreshToken).Methods(http.MethodPost)

	v1.HandleFunc("/categories", h.ListCategories).Methods(http.MethodGet)
	v1.HandleFunc("/categories", h.CreateCategory).Methods(http.MethodPost)
	v1.HandleFunc("/categories/{slug}", h.DeleteCategory).Methods(http.MethodDelete)

	v1.HandleFunc("/genres", h.ListGenres).Methods(http.MethodGet)
	v1.HandleFunc("/genres", h.CreateGenre).Methods(http.MethodPost)
	v1.HandleFunc("/genres/{slug}", h.DeleteGenre).Methods(http.MethodDelete)

	v1.HandleFunc("/titles", h.ListTitles).Methods(http.MethodGet)
	v1.HandleFunc("/titles", h.CreateTitle).Methods(http.MethodPost)
	v1.HandleFunc("/titles/{title_id}", h.GetTitle).Methods(http.MethodGet)
	v1.HandleFunc("/titles/{title_id}", h.PatchTitle).Methods(http.MethodPatch)
	v1.HandleFunc("/titles/{title_id}", h.PutTitle).Methods(http.MethodPut)
	v1.HandleFunc("/titles/{title_id}", h.DeleteTitle).Methods(http.MethodDelete)

	reviews := v1.PathPrefix("/titles/{title_id}/reviews").Subrouter()
	reviews.HandleFunc("", h.ListReviews).Methods(http.MethodGet)
	reviews.HandleFunc("", h.CreateReview).Methods(http.MethodPost)
	reviews.HandleFunc("/{review_id}", h.GetReview).Methods(http.MethodGet)
	reviews.HandleFunc("/{review_id}", h.PatchReview).Methods(http.MethodPatch)
	reviews.HandleFunc("/{review_id}", h.PutReview).Methods(http.MethodPut)
	reviews.HandleFunc("/{review_id}", h.DeleteReview).Methods(http.MethodDelete)

	comments := reviews.PathPrefix("/{review_id}/comments").Subrouter()
	comments.HandleFunc("", h.ListComments).Methods(http.MethodGet)
	comments.HandleFunc("", h.CreateComment).Methods(http.MethodPost)
	comments.HandleFunc("/{comment_id}", h.GetComment).Methods(http.MethodGet)
	comments.HandleFunc("/{comment_id}", h.PatchComment).Methods(http.MethodPatch)
	comments.HandleFunc("/{comment_id}", h.PutComment).Methods(http.MethodPut)
	comments.HandleFunc("/{comment_id}", h.DeleteComment).Methods(http.MethodDelete)

	// /users/me must be matched before /users/{username}.
	v1.HandleFunc("/users/me", h.Me)
	v1.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	v1.HandleFunc("/users", h.CreateUser).Methods(http.MethodPost)
	v1.HandleFunc("/users/{username}", h.GetUser).Methods(http.MethodGet)
	v1.HandleFunc("/users/{username}", h.PatchUser).Methods(http.MethodPatch)
	v1.HandleFunc("/users/{username}", h.PutUser).Methods(http.MethodPut)
	v1.HandleFunc("/users/{username}", h.DeleteUser).Methods(http.MethodDelete)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	})
	return corsHandler(router)
}
