package router

import (
	"github.com/Totarae/LinkLauncher/internal/handlers"
	"github.com/Totarae/LinkLauncher/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter создаёт и настраивает маршрутизатор
func NewRouter(handler *handlers.Handler, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.LoggingMiddleware(logger)) // Подключаем логирование
	r.Use(middleware.GzipMiddleware)            // Gzip-сжатие

	r.Get("/healthz", handler.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", handler.Register)
		r.Post("/auth/login", handler.Login)
		r.Post("/auth/logout", handler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(handler.Auth.Middleware)

			r.Get("/links", handler.GetUserLinks)
			r.Post("/links", handler.CreateLink)
			r.Put("/links/order", handler.ReorderLinks)
			r.Patch("/links/{id}", handler.UpdateLink)
			r.Delete("/links/{id}", handler.DeleteLink)
		})
	})
	return r
}
