// internal/common/llm/client.go
// Package llm wraps the completion provider behind a narrow request/response
// contract. The pipeline never sees provider SDK types.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"prompt-pipeline/internal/common/config"
	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/common/logger"
)

// CompletionRequest carries one prompt and its execution settings.
type CompletionRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Provider is the completion contract the pipeline depends on.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Client is the HTTP implementation of Provider.
type Client struct {
	config config.LLMConfig
	client *http.Client
	logger logger.Logger
}

func NewClient(cfg config.LLMConfig, log logger.Logger) *Client {
	return &Client{
		config: cfg,
		// No client-level timeout; deadlines come from the caller's context.
		client: &http.Client{},
		logger: log.WithFields(map[string]interface{}{"component": "llm-client"}),
	}
}

// Complete sends the prompt to the provider and returns the completion text.
// Transient failures are retried with exponential backoff up to MaxRetries;
// a context deadline maps to a provider timeout error.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", pipelineerrors.NewProviderError(err)
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", pipelineerrors.NewProviderTimeoutError()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.config.BaseURL+"/v1/completions", bytes.NewReader(body))
		if err != nil {
			return "", pipelineerrors.NewProviderError(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, lastErr = c.client.Do(httpReq)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}

		if ctx.Err() != nil {
			return "", pipelineerrors.NewProviderTimeoutError()
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", pipelineerrors.NewProviderTimeoutError()
		}
		return "", pipelineerrors.NewProviderError(lastErr)
	}

	if resp == nil {
		return "", pipelineerrors.NewProviderError(fmt.Errorf("no successful response after retries"))
	}
	defer resp.Body.Close()

	var apiResponse struct {
		Text  string `json:"text"`
		Model string `json:"model"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", pipelineerrors.NewProviderError(fmt.Errorf("decode error: %v", err))
	}

	c.logger.Debug("completion received", map[string]interface{}{
		"model":            req.Model,
		"completionTokens": apiResponse.Usage.CompletionTokens,
	})

	return apiResponse.Text, nil
}
