// Package oracle is the language-model boundary. One call per firing: a
// system prompt plus the assembled context go out, raw text comes back.
// The reply is expected, not guaranteed, to be JSON; parsing it is the
// decision package's problem. Calls are never retried here: a failed call
// aborts the current firing and the next scheduled tick is the retry.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/heraldhq/herald/internal/telemetry"
)

// ErrOracle marks any failed model call, carrying the upstream status and
// error body when available.
var ErrOracle = errors.New("oracle request failed")

const (
	defaultBaseURL = "https://api.openai.com/v1"
	maxErrBody     = 2048
)

// MemorySource supplies the standing free-form notes about the user,
// prepended to every system prompt when non-empty. Typically backed by
// the store's memory key; nil disables the preamble.
type MemorySource func(ctx context.Context) (string, error)

// Options configures the client. Model is required; everything else has
// a usable zero value.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	memory      MemorySource
	tel         *telemetry.Telemetry
	logger      *log.Logger
}

func New(opts Options, memory MemorySource, tel *telemetry.Telemetry) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		memory:      memory,
		tel:         tel,
		logger:      log.New(log.Writer(), "[ORACLE] ", log.LstdFlags),
	}
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model       string    `json:"model"`
	Messages    []chatMsg `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Ask sends the prompt pair and returns the model's raw reply text.
func (c *Client) Ask(ctx context.Context, systemPrompt, userMessage string, maxTokens int) (text string, err error) {
	started := time.Now()
	defer func() { c.tel.RecordOracle(err, started) }()

	if c.apiKey == "" {
		return "", fmt.Errorf("%w: api key not configured", ErrOracle)
	}

	if c.memory != nil {
		mem, merr := c.memory(ctx)
		if merr != nil {
			c.logger.Printf("memory preamble unavailable, continuing without: %v", merr)
		} else if strings.TrimSpace(mem) != "" {
			systemPrompt = "Standing notes about the user:\n" + mem + "\n\n" + systemPrompt
		}
	}

	body, err := json.Marshal(chatReq{
		Model: c.model,
		Messages: []chatMsg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal: %v", ErrOracle, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: request: %v", ErrOracle, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOracle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return "", fmt.Errorf("%w: status %d: %s", ErrOracle, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrOracle, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: reply has no choices", ErrOracle)
	}
	return out.Choices[0].Message.Content, nil
}
