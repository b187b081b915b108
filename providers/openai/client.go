package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"coursemate/config"
)

// retryBaseDelay ist die Basis für den Retry-Backoff; Tests setzen sie herunter.
var retryBaseDelay = 2 * time.Second

// Client spricht die Chat-Completions-API von OpenAI (oder einem kompatiblen
// Endpoint) über plain HTTP an.
type Client struct {
	cfg        *config.Config
	logger     *zap.Logger
	httpClient *http.Client
}

// NewClient erstellt einen neuen OpenAI-Client aus der Konfiguration.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.OpenAITimeoutSec) * time.Second,
		},
	}
}

// Name gibt den eindeutigen Namen des Providers zurück.
func (c *Client) Name() string {
	return "openai"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

func retryableErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	return false
}

// Complete schickt System- und User-Prompt als eine einzelne Chat-Completion
// an das konfigurierte Modell. Bei 408/429/5xx und Netzwerk-Timeouts wird mit
// Backoff erneut versucht, maximal OPENAI_MAX_RETRIES mal.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := chatRequest{
		Model: c.cfg.OpenAIModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.cfg.OpenAITemperature,
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.OpenAIMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * retryBaseDelay
			c.logger.Warn("Retrying completion request",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := c.doOnce(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryableErr(err) {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) doOnce(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenAIBaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("openai response decode failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
