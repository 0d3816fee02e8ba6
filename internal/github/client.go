package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIBase   = "https://api.github.com"
	defaultUserAgent = "alsosee/finder/1.0.0"

	// previewAccept mantém o formato exigido pelo endpoint de dispatches.
	previewAccept = "application/vnd.github.everest-preview+json"

	// EventPull é o event_type consumido pelo workflow que abre o PR.
	EventPull = "pull"
)

// Client encapsula chamadas à API do GitHub.
type Client struct {
	httpClient *http.Client
	token      string
	owner      string
	repo       string
	baseURL    string
	userAgent  string
}

// Config descreve credenciais e repositório de destino.
type Config struct {
	Token      string
	Repository string
	APIBase    string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// StatusError é devolvido quando a API responde algo diferente de 204.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GitHub API failed with status code %d", e.StatusCode)
}

// DispatchPayload é o corpo de POST /repos/{owner}/{repo}/dispatches.
type DispatchPayload struct {
	EventType     string         `json:"event_type"`
	ClientPayload map[string]any `json:"client_payload"`
}

// New cria um cliente autenticado por token.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("github: token obrigatório")
	}
	owner, repo, ok := strings.Cut(strings.Trim(strings.TrimSpace(cfg.Repository), "/"), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, errors.New("github: repositório deve estar no formato owner/repo")
	}

	apiBase := strings.TrimSpace(cfg.APIBase)
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: client,
		token:      cfg.Token,
		owner:      owner,
		repo:       repo,
		baseURL:    strings.TrimRight(apiBase, "/"),
		userAgent:  userAgent,
	}, nil
}

// Dispatch dispara repository_dispatch com event_type "pull" e o caminho do arquivo.
func (c *Client) Dispatch(ctx context.Context, path string) error {
	return c.DispatchEvent(ctx, DispatchPayload{
		EventType:     EventPull,
		ClientPayload: map[string]any{"path": path},
	})
}

// DispatchEvent envia um evento arbitrário; sucesso apenas com 204.
func (c *Client) DispatchEvent(ctx context.Context, payload DispatchPayload) error {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/dispatches", c.baseURL, c.owner, c.repo)
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github: dispatch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", previewAccept)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}
