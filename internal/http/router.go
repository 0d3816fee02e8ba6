package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/alsosee/media-gateway/internal/alert"
	"github.com/alsosee/media-gateway/internal/config"
	"github.com/alsosee/media-gateway/internal/github"
	httpmiddleware "github.com/alsosee/media-gateway/internal/http/middleware"
	"github.com/alsosee/media-gateway/internal/http/render"
	"github.com/alsosee/media-gateway/internal/metrics"
	"github.com/alsosee/media-gateway/internal/proxy"
	"github.com/alsosee/media-gateway/internal/storage"
	"github.com/alsosee/media-gateway/internal/telemetry"
	"github.com/alsosee/media-gateway/internal/upload"
)

// Pinger é uma dependência verificada em /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Handler struct {
	cfg           *config.Config
	checks        map[string]Pinger
	uploadLimiter *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado. redisClient pode ser nil.
func NewRouter(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (http.Handler, error) {
	checks := make(map[string]Pinger)

	var managed storage.BlobStore
	switch cfg.Storage.Provider {
	case "", "relay":
		// sem bucket: o pipeline usa o relay local
	case "memory":
		managed = storage.NewMemoryStore()
	case "s3", "r2":
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:  cfg.Storage.S3Endpoint,
			Region:    cfg.Storage.S3Region,
			Bucket:    cfg.Storage.S3Bucket,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		managed = s3Store
		checks["storage"] = s3Store
	default:
		return nil, fmt.Errorf("storage: provedor %s não suportado", cfg.Storage.Provider)
	}

	relay, err := storage.NewRelay(storage.RelayConfig{URL: cfg.Storage.RelayURL, Timeout: cfg.Storage.RelayTimeout})
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}

	// Dispatcher nil faz o pipeline responder 500 por requisição, sem derrubar o boot.
	var dispatcher upload.Dispatcher
	if cfg.GitHub.Token != "" {
		client, err := github.New(github.Config{
			Token:      cfg.GitHub.Token,
			Repository: cfg.GitHub.Repository,
			APIBase:    cfg.GitHub.APIBase,
			UserAgent:  cfg.GitHub.UserAgent,
			Timeout:    cfg.GitHub.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("github: %w", err)
		}
		dispatcher = client
	} else {
		log.Warn().Msg("GHP_TOKEN ausente: uploads responderão 500")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder("", registry)
	if err != nil {
		return nil, err
	}

	uploadService := upload.NewService(upload.Deps{
		Store:      managed,
		Relay:      relay,
		Dispatcher: dispatcher,
		Observer:   recorder,
	}, upload.DefaultOptions())

	handlerOpts := []upload.HandlerOption{upload.WithMaxBody(cfg.MaxUploadBytes)}
	if notifier := alert.NewSlackNotifier(cfg.SlackWebhookURL); notifier != nil {
		handlerOpts = append(handlerOpts, upload.WithNotifier(notifier))
	}
	uploadHandler := upload.NewHandler(uploadService, handlerOpts...)
	proxyHandler := proxy.NewHandler(nil, cfg.ProxyTimeout)

	// Interface nil explícita: um *redis.Client nil não desativaria o middleware.
	var cache redis.Cmdable
	if redisClient != nil {
		cache = redisClient
		checks["redis"] = pingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	h := &Handler{
		cfg:           cfg,
		checks:        checks,
		uploadLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitUpload.RequestsPerSecond, cfg.RateLimitUpload.Burst),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(telemetry.Middleware)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Method(http.MethodGet, "/metrics", recorder.Handler())

	// Outros métodos chegam direto ao handler, que responde 405 antes de tudo.
	r.Group(func(up chi.Router) {
		up.Use(httpmiddleware.ForMethod(http.MethodPut, httpmiddleware.IPRateLimit(h.uploadLimiter)))
		up.Use(httpmiddleware.ForMethod(http.MethodPut, httpmiddleware.Idempotency(cache, cfg.IdempotencyTTL)))
		upload.Mount(up, uploadHandler)
	})

	proxy.Mount(r, proxyHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.ErrorMessage(w, http.StatusNotFound, "Not Found")
	})

	return r, nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida bucket e Redis, quando configurados.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failures := make(map[string]string)
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		render.JSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "checks": failures})
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{"ready": true, "storage": h.storageMode()})
}

func (h *Handler) storageMode() string {
	if h.cfg.Storage.Managed() {
		return h.cfg.Storage.Provider
	}
	return "relay"
}
