package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Env             string
	Port            int
	MaxUploadBytes  int64
	RedisURL        string
	IdempotencyTTL  time.Duration
	AllowOrigins    []string
	RateLimitUpload RateLimitConfig
	ProxyTimeout    time.Duration
	SlackWebhookURL string
	GitHub          GitHubConfig
	Storage         StorageConfig
	Telemetry       TelemetryConfig
	Relay           RelayServerConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// GitHubConfig descreve o destino do evento repository_dispatch.
type GitHubConfig struct {
	Token      string
	Repository string
	APIBase    string
	UserAgent  string
	Timeout    time.Duration
}

// StorageConfig escolhe onde os arquivos enviados são persistidos.
type StorageConfig struct {
	Provider     string
	S3Endpoint   string
	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	RelayURL     string
	RelayTimeout time.Duration
}

// TelemetryConfig habilita exportação de traces via OTLP.
type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
}

// RelayServerConfig configura o receptor local usado em desenvolvimento.
type RelayServerConfig struct {
	Port int
	Dir  string
}

// Managed indica se há bucket gerenciado; caso contrário o relay local é usado.
func (s StorageConfig) Managed() bool {
	switch s.Provider {
	case "", "relay":
		return false
	default:
		return true
	}
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.Env = strings.TrimSpace(getEnv("APP_ENV", "development"))

	port, err := parseIntEnv("PORT", 8788)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	maxUpload, err := parseIntEnv("MAX_UPLOAD_BYTES", 64<<20)
	if err != nil || maxUpload <= 0 {
		return nil, errors.New("MAX_UPLOAD_BYTES inválido")
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMPOTENCY_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	cfg.AllowOrigins = nil
	for _, origin := range strings.Split(getEnv("ALLOW_ORIGINS", ""), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64)
	if err != nil || rps <= 0 {
		return nil, errors.New("RATE_LIMIT_RPS inválido")
	}
	burst, err := parseIntEnv("RATE_LIMIT_BURST", 10)
	if err != nil || burst <= 0 {
		return nil, errors.New("RATE_LIMIT_BURST inválido")
	}
	cfg.RateLimitUpload = RateLimitConfig{RequestsPerSecond: rps, Burst: burst}

	if cfg.ProxyTimeout, err = parseDurationEnv("PROXY_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	cfg.SlackWebhookURL = strings.TrimSpace(getEnv("SLACK_WEBHOOK_URL", ""))

	if cfg.GitHub, err = loadGitHub(); err != nil {
		return nil, err
	}
	if cfg.Storage, err = loadStorage(); err != nil {
		return nil, err
	}

	cfg.Telemetry = TelemetryConfig{
		Enabled:      parseBoolEnv("OTEL_ENABLED", false),
		ServiceName:  strings.TrimSpace(getEnv("OTEL_SERVICE_NAME", "media-gateway")),
		OTLPEndpoint: strings.TrimSpace(getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.OTLPEndpoint == "" {
		return nil, errors.New("OTEL_EXPORTER_OTLP_ENDPOINT obrigatório quando OTEL_ENABLED=true")
	}

	relayPort, err := parseIntEnv("RELAY_PORT", 8780)
	if err != nil || relayPort <= 0 {
		return nil, errors.New("RELAY_PORT inválida")
	}
	cfg.Relay = RelayServerConfig{
		Port: relayPort,
		Dir:  strings.TrimSpace(getEnv("RELAY_DIR", "./media")),
	}

	return cfg, nil
}

// GHP_TOKEN ausente não impede o boot: o handler responde 500 por requisição.
func loadGitHub() (GitHubConfig, error) {
	gh := GitHubConfig{
		Token:      strings.TrimSpace(getEnv("GHP_TOKEN", "")),
		Repository: strings.Trim(strings.TrimSpace(getEnv("GITHUB_REPOSITORY", "alsosee/media")), "/"),
		APIBase:    strings.TrimRight(strings.TrimSpace(getEnv("GITHUB_API_BASE", "https://api.github.com")), "/"),
		UserAgent:  strings.TrimSpace(getEnv("GITHUB_USER_AGENT", "alsosee/finder/1.0.0")),
	}
	if parts := strings.Split(gh.Repository, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return gh, errors.New("GITHUB_REPOSITORY deve estar no formato owner/repo")
	}
	timeout, err := parseDurationEnv("DISPATCH_TIMEOUT", 15*time.Second)
	if err != nil {
		return gh, err
	}
	gh.Timeout = timeout
	return gh, nil
}

func loadStorage() (StorageConfig, error) {
	st := StorageConfig{
		Provider:    strings.ToLower(strings.TrimSpace(getEnv("STORAGE_PROVIDER", ""))),
		S3Endpoint:  strings.TrimSpace(getEnv("S3_ENDPOINT", "")),
		S3Region:    strings.TrimSpace(getEnv("S3_REGION", "auto")),
		S3Bucket:    strings.TrimSpace(getEnv("S3_BUCKET", "media-purgatory")),
		S3AccessKey: strings.TrimSpace(getEnv("S3_ACCESS_KEY", "")),
		S3SecretKey: strings.TrimSpace(getEnv("S3_SECRET_KEY", "")),
		RelayURL:    strings.TrimSpace(getEnv("RELAY_URL", "http://localhost:8780/upload")),
	}
	switch st.Provider {
	case "", "relay", "memory", "s3", "r2":
	default:
		return st, errors.New("STORAGE_PROVIDER não suportado: " + st.Provider)
	}
	timeout, err := parseDurationEnv("RELAY_TIMEOUT", 30*time.Second)
	if err != nil {
		return st, err
	}
	st.RelayTimeout = timeout
	return st, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return val
	}
	return def
}

func parseIntEnv(key string, def int) (int, error) {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def, nil
	}
	return strconv.Atoi(val)
}

func parseBoolEnv(key string, def bool) bool {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}
