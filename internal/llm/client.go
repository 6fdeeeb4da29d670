package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Typed failures of the LLM primitive. Callers classify with IsUnavailable
// and degrade; these errors are never surfaced to the end user as search
// failures.
var (
	// ErrTimeout indicates the request exceeded its deadline
	ErrTimeout = errors.New("llm request timed out")
	// ErrConnectionRefused indicates the LLM server is unreachable
	ErrConnectionRefused = errors.New("llm server unreachable")
	// ErrBadResponse indicates a non-2xx status or an unparsable body
	ErrBadResponse = errors.New("llm bad response")
)

// IsUnavailable reports whether err is one of the recoverable LLM failure
// modes that the pipeline treats as "fall back to the non-LLM signal".
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionRefused) ||
		errors.Is(err, ErrBadResponse)
}

// Options controls a single completion request
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Stop        []string
	Timeout     time.Duration // Overrides the client default when > 0
}

// Message is a single chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the synchronous request/response LLM primitive
type Client interface {
	// Complete sends a text completion request and returns the generated text
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
	// Chat sends a chat completion request and returns the reply text
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
	// Model returns the default model identifier, used as the cache
	// model-version key
	Model() string
	Close() error
}

// OllamaClient talks to a local Ollama-compatible server
type OllamaClient struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewOllamaClient creates a client for the given base URL and default model
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
		// Per-request deadlines come from the context, not the client
		httpClient: &http.Client{},
	}
}

func (c *OllamaClient) Model() string {
	return c.model
}

func (c *OllamaClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Complete sends a generate request (Ollama /api/generate format)
func (c *OllamaClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	payload := map[string]any{
		"model":   c.resolveModel(opts),
		"prompt":  prompt,
		"stream":  false,
		"options": c.modelOptions(opts),
	}

	var apiResp struct {
		Response string `json:"response"`
	}
	if err := c.post(ctx, "/api/generate", payload, opts, &apiResp); err != nil {
		return "", err
	}
	return strings.TrimSpace(apiResp.Response), nil
}

// Chat sends a chat request (Ollama /api/chat format)
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	payload := map[string]any{
		"model":    c.resolveModel(opts),
		"messages": messages,
		"stream":   false,
		"options":  c.modelOptions(opts),
	}

	var apiResp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := c.post(ctx, "/api/chat", payload, opts, &apiResp); err != nil {
		return "", err
	}
	return strings.TrimSpace(apiResp.Message.Content), nil
}

func (c *OllamaClient) resolveModel(opts Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return c.model
}

func (c *OllamaClient) modelOptions(opts Options) map[string]any {
	options := map[string]any{
		"temperature": opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if len(opts.Stop) > 0 {
		options["stop"] = opts.Stop
	}
	return options
}

func (c *OllamaClient) post(ctx context.Context, path string, payload any, opts Options, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrBadResponse, resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrBadResponse, err)
	}
	return nil
}

// classifyTransportError maps transport failures onto the typed error set
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnectionRefused, err)
}
