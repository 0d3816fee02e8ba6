package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "media_gateway"

// Recorder exporta duração das etapas e resultados do upload.
type Recorder struct {
	gatherer      prometheus.Gatherer
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	results       *prometheus.CounterVec
}

// NewRecorder registra os coletores em reg; nil usa um registry próprio.
func NewRecorder(namespace string, reg *prometheus.Registry) (*Recorder, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	rec := &Recorder{
		gatherer: reg,
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_stage_duration_seconds",
			Help:      "Latência de cada etapa do upload (persist, dispatch).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_stage_errors_total",
			Help:      "Falhas por etapa do upload.",
		}, []string{"stage"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploads concluídos por resultado.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{rec.stageDuration, rec.stageErrors, rec.results} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: registrar coletor: %w", err)
		}
	}
	return rec, nil
}

func (r *Recorder) ObserveStage(stage string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		r.stageErrors.WithLabelValues(stage).Inc()
	}
}

// ObserveResult conta por tipo de erro; kind vazio significa sucesso.
func (r *Recorder) ObserveResult(kind string, _ time.Duration) {
	if r == nil {
		return
	}
	if kind == "" {
		kind = "ok"
	}
	r.results.WithLabelValues(kind).Inc()
}

// Handler expõe o registry no formato de exposição do Prometheus.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
