package relay

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/alsosee/media-gateway/internal/http/render"
	"github.com/alsosee/media-gateway/internal/storage"
)

type result struct {
	Status string `json:"status"`
	Key    string `json:"key"`
}

// Handler recebe uploads encaminhados pelo gateway quando não há bucket.
type Handler struct {
	store storage.BlobStore
}

func NewHandler(store storage.BlobStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/upload", h.handleUpload)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		render.MethodNotAllowed(w, http.MethodPost)
		return
	}

	key := r.Header.Get(storage.FileNameHeader)
	if key == "" {
		render.ErrorMessage(w, http.StatusBadRequest, "Missing x-file-name header")
		return
	}

	if err := h.store.Put(r.Context(), key, r.Body, r.ContentLength); err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			render.ErrorMessage(w, http.StatusBadRequest, "Invalid x-file-name header")
			return
		}
		log.Error().Err(err).Str("key", key).Msg("relay: falha ao gravar arquivo")
		render.Fault(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("key", key).Int64("bytes", r.ContentLength).Msg("relay: arquivo gravado")
	render.JSON(w, http.StatusCreated, result{Status: "ok", Key: key})
}
