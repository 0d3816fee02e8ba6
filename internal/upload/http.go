package upload

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/alsosee/media-gateway/internal/alert"
	"github.com/alsosee/media-gateway/internal/http/render"
	"github.com/alsosee/media-gateway/internal/storage"
)

// UploadIDHeader identifica cada tentativa de upload nos logs e na resposta.
const UploadIDHeader = "X-Upload-ID"

// Handler expõe o pipeline de upload via HTTP.
type Handler struct {
	service  *Service
	maxBody  int64
	notifier alert.Notifier
	logger   zerolog.Logger
}

// HandlerOption customiza o handler.
type HandlerOption func(*Handler)

// WithMaxBody limita o tamanho do corpo aceito; 0 desativa o limite.
func WithMaxBody(n int64) HandlerOption {
	return func(h *Handler) { h.maxBody = n }
}

// WithNotifier envia alerta quando o objeto foi gravado mas o dispatch falhou.
func WithNotifier(n alert.Notifier) HandlerOption {
	return func(h *Handler) { h.notifier = n }
}

// WithLogger substitui o logger global.
func WithLogger(l zerolog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

func NewHandler(service *Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		service: service,
		logger:  log.With().Str("component", "upload").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	// HandleFunc aceita todos os métodos; o 405 com Allow: PUT sai do pipeline.
	r.HandleFunc("/upload", h.handleUpload)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	uploadID := uuid.NewString()
	w.Header().Set(UploadIDHeader, uploadID)

	logger := h.logger.With().Str("upload_id", uploadID).Logger()
	if reqID := chimiddleware.GetReqID(r.Context()); reqID != "" {
		logger = logger.With().Str("request_id", reqID).Logger()
	}

	req, err := NewRequest(r, h.maxBody)
	if err != nil {
		h.service.observer.ObserveResult(string(KindOf(err)), time.Since(start))
		h.writeError(w, logger, req.Key, err)
		return
	}

	result, err := h.service.Upload(r.Context(), req)
	if err != nil {
		h.writeError(w, logger, req.Key, err)
		return
	}

	logger.Info().Str("key", result.Key).Dur("duration", time.Since(start)).Msg("upload concluído")
	render.JSON(w, http.StatusOK, result)
}

// NewRequest extrai método, chave e corpo. O método é checado antes do cabeçalho.
func NewRequest(r *http.Request, maxBody int64) (UploadRequest, error) {
	req := UploadRequest{Method: r.Method, Size: r.ContentLength}
	if r.Method != http.MethodPut {
		return req, newError(KindMethodNotAllowed, msgMethodNotAllowed, nil)
	}

	key, err := DecodeKey(r.Header.Get(storage.FileNameHeader))
	if err != nil {
		return req, err
	}
	req.Key = key

	body := r.Body
	if body == nil {
		body = http.NoBody
	}
	if maxBody > 0 {
		if r.ContentLength > maxBody {
			return req, newError(KindInternalError, fmt.Sprintf("request body exceeds %d bytes", maxBody), nil)
		}
		body = http.MaxBytesReader(nil, body, maxBody)
	}
	req.Body = body
	return req, nil
}

func (h *Handler) writeError(w http.ResponseWriter, logger zerolog.Logger, key string, err error) {
	uerr := asUploadError(err)
	status := uerr.Status()

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(uerr.Err).Str("kind", string(uerr.Kind)).Str("key", key).Int("status", status).Msg(uerr.Message)

	if uerr.Kind == KindDispatchFailure {
		h.notifyDispatchFailure(key, uerr)
	}

	switch uerr.Kind {
	case KindMethodNotAllowed:
		render.MethodNotAllowed(w, http.MethodPut)
	case KindMissingKey:
		render.ErrorMessage(w, status, uerr.Message)
	default:
		render.Fault(w, status, uerr.Message)
	}
}

// O objeto já está no bucket; o alerta só registra o estado degradado.
func (h *Handler) notifyDispatchFailure(key string, uerr *Error) {
	if h.notifier == nil {
		return
	}
	msg := alert.Message{
		Title:    "Dispatch falhou após upload",
		Text:     fmt.Sprintf("Arquivo `%s` gravado, mas o repository_dispatch falhou: %s", key, uerr.Message),
		Severity: alert.SeverityWarning,
	}
	notifier := h.notifier
	logger := h.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := notifier.Notify(ctx, msg); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("falha ao enviar alerta")
		}
	}()
}
