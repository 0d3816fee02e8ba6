package proxy

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/alsosee/media-gateway/internal/http/render"
)

const (
	msgMissingURL = "Missing url parameter"
	msgInvalidURL = "Invalid url parameter"
)

// Handler reexpõe imagens remotas como image/jpeg.
type Handler struct {
	client *http.Client
}

// NewHandler usa client quando informado; senão cria um com o timeout dado.
func NewHandler(client *http.Client, timeout time.Duration) *Handler {
	if client == nil {
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Handler{client: client}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/get", h.handleGet)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		render.MethodNotAllowed(w, http.MethodGet)
		return
	}

	target, err := TargetURL(r.URL.RawQuery)
	if err != nil {
		render.ErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		render.ErrorMessage(w, http.StatusBadRequest, msgInvalidURL)
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", target).Msg("proxy: falha ao buscar imagem")
		render.Fault(w, http.StatusInternalServerError, "Failed to fetch image: "+err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		log.Warn().Int("upstream_status", resp.StatusCode).Str("url", target).Msg("proxy: upstream recusou")
		render.Fault(w, http.StatusBadGateway, fmt.Sprintf("Upstream responded with status code %d", resp.StatusCode))
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	if resp.ContentLength >= 0 {
		w.Header().Set("Content-Length", fmt.Sprint(resp.ContentLength))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Warn().Err(err).Str("url", target).Msg("proxy: cópia interrompida")
	}
}

// TargetURL devolve tudo após "url=" na query crua, decodificado.
// O alvo pode conter '&' próprio, por isso não se usa url.ParseQuery.
func TargetURL(rawQuery string) (string, error) {
	idx := strings.Index(rawQuery, "url=")
	if idx < 0 || (idx > 0 && rawQuery[idx-1] != '&') {
		return "", errMissing
	}
	raw := rawQuery[idx+len("url="):]
	if raw == "" {
		return "", errMissing
	}

	target, err := url.PathUnescape(raw)
	if err != nil {
		return "", errInvalid
	}
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errInvalid
	}
	return target, nil
}

type paramError string

func (e paramError) Error() string { return string(e) }

const (
	errMissing = paramError(msgMissingURL)
	errInvalid = paramError(msgInvalidURL)
)
