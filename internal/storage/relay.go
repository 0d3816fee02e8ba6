package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FileNameHeader carrega a chave do objeto nas requisições de upload.
const FileNameHeader = "X-File-Name"

// RelayConfig aponta para o receptor local usado quando não há bucket.
type RelayConfig struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Relay encaminha o corpo via POST para o receptor local.
type Relay struct {
	url    string
	client *http.Client
}

// RelayError descreve falha do receptor local (status != 201 ou erro de transporte).
type RelayError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RelayError) Error() string {
	if e.Err != nil {
		return "Local server request failed: " + e.Err.Error()
	}
	return fmt.Sprintf("Local server failed with status code %d: %s", e.StatusCode, e.Body)
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

// NewRelay valida a URL do receptor.
func NewRelay(cfg RelayConfig) (*Relay, error) {
	target := strings.TrimSpace(cfg.URL)
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("storage: URL do relay inválida")
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Relay{url: target, client: client}, nil
}

// Put exige 201 do receptor; qualquer outro status vira *RelayError.
func (r *Relay) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, body)
	if err != nil {
		return &RelayError{Err: err}
	}
	if size >= 0 {
		req.ContentLength = size
	}
	req.Header.Set(FileNameHeader, key)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := r.client.Do(req)
	if err != nil {
		return &RelayError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RelayError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	return nil
}
