package relay

import (
	"github.com/go-chi/chi/v5"
)

// Mount adiciona a rota do receptor local no router.
func Mount(r chi.Router, handler *Handler) {
	handler.RegisterRoutes(r)
}
