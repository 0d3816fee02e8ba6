package upload

import (
	"github.com/go-chi/chi/v5"
)

// Mount adiciona a rota de upload no router.
func Mount(r chi.Router, handler *Handler) {
	handler.RegisterRoutes(r)
}
