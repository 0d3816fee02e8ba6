package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/alsosee/media-gateway/internal/http/render"
)

const (
	CorrelationIDHeader    = "X-Correlation-ID"
	IdempotentReplayHeader = "X-Idempotent-Replay"

	idempotencyKeyPrefix = "idempotency:"

	// Corpos maiores não são fingerprintados e nunca usam o cache.
	maxFingerprintBody = 8 << 20

	fieldFingerprint = "fingerprint"
	fieldBody        = "body"
)

// Idempotency reaproveita a resposta 2xx de um PUT/POST com o mesmo X-Correlation-ID.
// A resposta só é reaproveitada se x-file-name, tamanho e corpo forem os mesmos;
// o mesmo id com outra requisição recebe 409.
// Sem cabeçalho ou sem Redis a requisição segue normalmente.
func Idempotency(client redis.Cmdable, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil || (r.Method != http.MethodPut && r.Method != http.MethodPost) {
				next.ServeHTTP(w, r)
				return
			}
			correlationID := r.Header.Get(CorrelationIDHeader)
			if correlationID == "" {
				next.ServeHTTP(w, r)
				return
			}
			logger := log.With().Str("correlation_id", correlationID).Logger()

			fingerprint, ok, err := fingerprintRequest(r)
			if err != nil {
				render.Fault(w, http.StatusInternalServerError, "failed to read request body: "+err.Error())
				return
			}
			if !ok {
				logger.Debug().Int64("content_length", r.ContentLength).Msg("idempotência: corpo grande demais, cache ignorado")
				next.ServeHTTP(w, r)
				return
			}

			key := idempotencyKeyPrefix + r.Method + ":" + r.URL.Path + ":" + correlationID
			cached, err := client.HGetAll(r.Context(), key).Result()
			switch {
			case err != nil:
				logger.Warn().Err(err).Msg("idempotência: leitura do cache falhou")
			case cached[fieldFingerprint] == "":
				// primeira requisição com este id
			case cached[fieldFingerprint] != fingerprint:
				render.ErrorMessage(w, http.StatusConflict, "X-Correlation-ID already used for a different request")
				return
			case cached[fieldBody] != "":
				w.Header().Set(IdempotentReplayHeader, "true")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = io.WriteString(w, cached[fieldBody])
				return
			}

			var buf bytes.Buffer
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status < 200 || status >= 300 || buf.Len() == 0 {
				return
			}
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
			defer cancel()
			_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, fieldFingerprint, fingerprint, fieldBody, buf.String())
				pipe.Expire(ctx, key, ttl)
				return nil
			})
			if err != nil {
				logger.Warn().Err(err).Msg("idempotência: gravação do cache falhou")
			}
		})
	}
}

// fingerprintRequest lê até maxFingerprintBody bytes e devolve o corpo intacto em r.Body.
// ok=false quando o corpo excede o limite.
func fingerprintRequest(r *http.Request) (string, bool, error) {
	if r.ContentLength > maxFingerprintBody {
		return "", false, nil
	}

	var prefix []byte
	if r.Body != nil && r.Body != http.NoBody {
		var err error
		prefix, err = io.ReadAll(io.LimitReader(r.Body, maxFingerprintBody+1))
		if err != nil {
			return "", false, err
		}
		r.Body = &replayBody{Reader: io.MultiReader(bytes.NewReader(prefix), r.Body), Closer: r.Body}
	}
	if len(prefix) > maxFingerprintBody {
		return "", false, nil
	}

	h := sha256.New()
	for _, part := range []string{r.Header.Get("X-File-Name"), strconv.FormatInt(r.ContentLength, 10)} {
		_, _ = io.WriteString(h, part)
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write(prefix)
	return hex.EncodeToString(h.Sum(nil)), true, nil
}

type replayBody struct {
	io.Reader
	io.Closer
}
