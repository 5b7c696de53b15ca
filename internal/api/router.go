package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/catalog-api/internal/api/handlers"
	"github.com/isdelr/catalog-api/internal/auth"
	"github.com/isdelr/catalog-api/internal/monitoring"
	"github.com/isdelr/catalog-api/internal/services"
	"github.com/isdelr/catalog-api/internal/websocket"
)

// Dependencies are the collaborators the router hands to its handlers.
type Dependencies struct {
	Hub            *websocket.Hub
	UserService    services.UserServiceProvider
	ProductService services.ProductServiceProvider
	EventService   services.EventServiceProvider
	TokenService   services.TokenServiceProvider
	Issuer         *auth.TokenIssuer
	Monitor        *monitoring.SystemMonitor

	AllowedOrigins []string
	ExposeErrors   bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	// Initialize handlers
	rs := handlers.Responder{ExposeErrors: deps.ExposeErrors}
	gate := auth.NewGate(deps.Issuer, deps.TokenService)
	userHandler := handlers.NewUserHandler(deps.UserService, deps.TokenService, deps.Issuer, rs)
	productHandler := handlers.NewProductHandler(deps.ProductService, rs)
	eventHandler := handlers.NewEventHandler(deps.EventService, rs)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.EventService, deps.AllowedOrigins)
	healthHandler := handlers.NewHealthHandler(deps.Monitor)

	r.Get("/health", healthHandler.Live)
	r.Get("/health/system", healthHandler.System)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", userHandler.Register)
			r.Post("/login", userHandler.Login)
			r.Post("/logout", userHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(gate.Middleware)
				r.Get("/me", userHandler.GetMe)
				r.Put("/update", userHandler.Update)
				r.Put("/password", userHandler.ChangePassword)
				r.Delete("/delete", userHandler.Delete)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.GetAll)
			r.Get("/{id}", productHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(gate.Middleware)
				r.Post("/", productHandler.Create)
				r.Put("/{id}", productHandler.Update)
				r.Delete("/{id}", productHandler.Delete)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Use(gate.Middleware)
			r.Get("/", eventHandler.GetRecent)
			r.Get("/ws", wsHandler.Serve)
		})
	})

	return r
}
