package controller

import (
	"net/http"

	"github.com/Freeeeeet/mentorship_api/internal/controller/handlers"
	"github.com/Freeeeeet/mentorship_api/internal/controller/middleware"
	"github.com/Freeeeeet/mentorship_api/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type HTTPController struct {
	router   chi.Router
	handlers *handlers.Handlers
	logger   *zap.Logger
}

func NewHTTPController(
	accounts handlers.Accounts,
	bookings handlers.Bookings,
	db handlers.Pinger,
	tokens middleware.TokenVerifier,
	corsOrigins []string,
	logger *zap.Logger,
) *HTTPController {
	c := &HTTPController{
		router:   chi.NewRouter(),
		handlers: handlers.NewHandlers(accounts, bookings, db, logger),
		logger:   logger,
	}

	c.registerRoutes(tokens, corsOrigins)

	return c
}

// Handler returns the root http.Handler for the server.
func (c *HTTPController) Handler() http.Handler {
	return c.router
}

func (c *HTTPController) registerRoutes(tokens middleware.TokenVerifier, corsOrigins []string) {
	r := c.router
	h := c.handlers

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog(c.logger))
	r.Use(chimw.Recoverer)
	r.Use(corsSettings(corsOrigins).Handler)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)
		})

		// Всё ниже требует bearer-токен
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens, c.logger))

			r.Route("/user", func(r chi.Router) {
				r.Get("/profile", h.Profile)
				r.Put("/profile", h.UpdateProfile)
				r.Put("/become-mentor", h.BecomeMentor)
				r.Put("/mentor-profile", h.UpdateMentorProfile)
				r.Get("/mentors", h.ListAllMentors)
				r.Get("/mentors/{mentorId}", h.GetMentor)
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/request", h.RequestSession)
				r.Get("/requests", h.ListRequests)
				r.Get("/upcoming", h.ListUpcoming)
				r.Get("/stats", h.Stats)
				r.Get("/mentor-sessions", h.ListMentorSessions)
				r.Get("/mentee-sessions", h.ListMenteeSessions)
				r.Get("/mentors", h.ListMentors)
				r.Patch("/{sessionId}", h.UpdateStatus)
			})
		})
	})
}

func corsSettings(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
}
