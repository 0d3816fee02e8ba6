package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alsosee/media-gateway/internal/github"
	"github.com/alsosee/media-gateway/internal/storage"
)

const (
	StatusOK    = "ok"
	StatusError = "error"

	StagePersist  = "persist"
	StageDispatch = "dispatch"
)

// UploadRequest é a entrada já extraída da requisição HTTP.
type UploadRequest struct {
	Method string
	Key    string
	Body   io.Reader
	Size   int64
}

// OperationResult é a única forma de resultado, qualquer que seja o caminho executado.
type OperationResult struct {
	Status  string `json:"status"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message,omitempty"`
}

// Dispatcher notifica a automação de que há um novo arquivo sob path.
type Dispatcher interface {
	Dispatch(ctx context.Context, path string) error
}

// Observer recebe duração e resultado de cada etapa e do fluxo completo.
type Observer interface {
	ObserveStage(stage string, d time.Duration, err error)
	ObserveResult(kind string, d time.Duration)
}

// Options liga ou desliga etapas opcionais do pipeline.
type Options struct {
	CheckCredential bool
	Dispatch        bool
	RelayFallback   bool
}

// DefaultOptions habilita todas as etapas.
func DefaultOptions() Options {
	return Options{CheckCredential: true, Dispatch: true, RelayFallback: true}
}

// Deps agrupa os colaboradores. Store nil ativa o relay local.
// Dispatcher nil equivale a credencial ausente.
type Deps struct {
	Store      storage.BlobStore
	Relay      storage.BlobStore
	Dispatcher Dispatcher
	Observer   Observer
}

// Service executa validação → persistência → dispatch, em sequência.
type Service struct {
	store      storage.BlobStore
	relay      storage.BlobStore
	dispatcher Dispatcher
	observer   Observer
	opts       Options
	tracer     trace.Tracer
}

func NewService(deps Deps, opts Options) *Service {
	observer := deps.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Service{
		store:      deps.Store,
		relay:      deps.Relay,
		dispatcher: deps.Dispatcher,
		observer:   observer,
		opts:       opts,
		tracer:     otel.Tracer("github.com/alsosee/media-gateway/internal/upload"),
	}
}

// DecodeKey aplica decodificação percentual sem tratar '+' como espaço.
func DecodeKey(raw string) (string, error) {
	if raw == "" {
		return "", newError(KindMissingKey, msgMissingKey, nil)
	}
	key, err := url.PathUnescape(raw)
	if err != nil {
		return "", newError(KindInternalError, fmt.Sprintf("invalid %s header: %v", storage.FileNameHeader, err), err)
	}
	if !utf8.ValidString(key) {
		return "", newError(KindInternalError, fmt.Sprintf("invalid %s header: not valid UTF-8", storage.FileNameHeader), nil)
	}
	if key == "" {
		return "", newError(KindMissingKey, msgMissingKey, nil)
	}
	return key, nil
}

// Upload nunca deixa um panic escapar: qualquer falha vira *Error.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (result OperationResult, err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = newError(KindInternalError, fmt.Sprintf("panic: %v", rec), nil)
		}
		if err != nil {
			result = OperationResult{Status: StatusError, Key: req.Key, Message: err.Error()}
		}
		s.observer.ObserveResult(string(KindOf(err)), time.Since(start))
	}()

	if err := s.validate(req); err != nil {
		return OperationResult{}, err
	}
	if err := s.persist(ctx, req); err != nil {
		return OperationResult{}, err
	}
	if s.opts.Dispatch {
		if err := s.dispatch(ctx, req.Key); err != nil {
			return OperationResult{}, err
		}
	}
	return OperationResult{Status: StatusOK, Key: req.Key}, nil
}

func (s *Service) validate(req UploadRequest) error {
	if req.Method != http.MethodPut {
		return newError(KindMethodNotAllowed, msgMethodNotAllowed, nil)
	}
	if req.Key == "" {
		return newError(KindMissingKey, msgMissingKey, nil)
	}
	// Credencial ausente bloqueia antes de qualquer gravação.
	if s.opts.CheckCredential && s.opts.Dispatch && s.dispatcher == nil {
		return newError(KindMissingCredential, msgMissingCredential, nil)
	}
	if req.Body == nil {
		return newError(KindInternalError, "request body is missing", nil)
	}
	return nil
}

func (s *Service) persist(ctx context.Context, req UploadRequest) (err error) {
	ctx, span := s.tracer.Start(ctx, "upload.persist", trace.WithAttributes(attribute.String("upload.key", req.Key)))
	start := time.Now()
	defer func() {
		s.observer.ObserveStage(StagePersist, time.Since(start), err)
		endSpan(span, err)
	}()

	switch {
	case s.store != nil:
		span.SetAttributes(attribute.String("upload.target", "bucket"))
		if err := s.store.Put(ctx, req.Key, req.Body, req.Size); err != nil {
			return newError(KindInternalError, "failed to store object: "+err.Error(), err)
		}
		return nil
	case s.opts.RelayFallback && s.relay != nil:
		span.SetAttributes(attribute.String("upload.target", "relay"))
		if err := s.relay.Put(ctx, req.Key, req.Body, req.Size); err != nil {
			var relayErr *storage.RelayError
			if errors.As(err, &relayErr) {
				return newError(KindRelayFailure, relayErr.Error(), err)
			}
			return newError(KindRelayFailure, "Local server request failed: "+err.Error(), err)
		}
		return nil
	default:
		return newError(KindInternalError, "no storage backend configured", nil)
	}
}

func (s *Service) dispatch(ctx context.Context, key string) (err error) {
	ctx, span := s.tracer.Start(ctx, "upload.dispatch", trace.WithAttributes(attribute.String("upload.key", key)))
	start := time.Now()
	defer func() {
		s.observer.ObserveStage(StageDispatch, time.Since(start), err)
		endSpan(span, err)
	}()

	if s.dispatcher == nil {
		return newError(KindMissingCredential, msgMissingCredential, nil)
	}
	if err := s.dispatcher.Dispatch(ctx, key); err != nil {
		var statusErr *github.StatusError
		if errors.As(err, &statusErr) {
			span.SetAttributes(attribute.Int("http.status_code", statusErr.StatusCode))
			return newError(KindDispatchFailure, statusErr.Error(), err)
		}
		return newError(KindDispatchFailure, "GitHub API request failed: "+err.Error(), err)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration, error) {}
func (nopObserver) ObserveResult(string, time.Duration)      {}
