package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kynto-backend/application/ports"
	pkgerrors "kynto-backend/pkg/errors"

	"go.uber.org/zap"
)

// Error codes attached to provider failures so callers can map them to
// transport responses without string matching.
const (
	CodeProvider     = "PROVIDER"
	CodeProviderAuth = "PROVIDER_AUTH"
)

// noContentFallback is returned when the provider answers with no choices
const noContentFallback = "No response generated."

// Config holds Groq client configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultConfig returns the settings the service ships with
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:      apiKey,
		BaseURL:     "https://api.groq.com/openai/v1",
		Model:       "llama-3.3-70b-versatile",
		MaxTokens:   2048,
		Temperature: 0.7,
		Timeout:     60 * time.Second,
	}
}

// GroqClient implements ports.CompletionClient against Groq's
// OpenAI-compatible chat completions API
type GroqClient struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGroqClient creates a new Groq client
func NewGroqClient(config Config, logger *zap.Logger) *GroqClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig(config.APIKey).BaseURL
	}
	if config.Model == "" {
		config.Model = DefaultConfig(config.APIKey).Model
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig(config.APIKey).Timeout
	}
	return &GroqClient{
		config: config,
		// No client-level timeout: streams outlive short deadlines, the
		// per-request context bounds every call instead.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Complete blocks until the provider returns the full roadmap text
func (c *GroqClient) Complete(ctx context.Context, goal string) (string, error) {
	ctx, cancel := c.withDefaultDeadline(ctx)
	defer cancel()

	resp, err := c.send(ctx, goal, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.classifyTransport(ctx, "read response", err)
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", pkgerrors.NewExternalError("groq", err).WithCode(CodeProvider)
	}
	if completion.Error != nil {
		return "", pkgerrors.NewExternalError("groq", errors.New(completion.Error.Message)).WithCode(CodeProvider)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message == nil {
		return noContentFallback, nil
	}
	return completion.Choices[0].Message.Content, nil
}

// Stream issues the completion request with streaming enabled. The returned
// stream yields one text fragment per provider delta.
func (c *GroqClient) Stream(ctx context.Context, goal string) (ports.CompletionStream, error) {
	ctx, cancel := c.withDefaultDeadline(ctx)

	resp, err := c.send(ctx, goal, true)
	if err != nil {
		cancel()
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &groqStream{
		ctx:     ctx,
		cancel:  cancel,
		body:    resp.Body,
		scanner: scanner,
	}, nil
}

// send performs the chat completions POST and classifies failure statuses
func (c *GroqClient) send(ctx context.Context, goal string, stream bool) (*http.Response, error) {
	if c.config.APIKey == "" {
		return nil, pkgerrors.NewExternalError("groq", errors.New("API key not configured")).WithCode(CodeProviderAuth)
	}

	reqBody := chatRequest{
		Model:       c.config.Model,
		Messages:    buildMessages(goal),
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		Stream:      stream,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to marshal completion request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to create completion request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyTransport(ctx, "request", err)
	}

	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	detail := strings.TrimSpace(string(body))

	c.logger.Warn("Groq request failed",
		zap.Int("status", resp.StatusCode),
		zap.String("model", c.config.Model),
		zap.String("body", detail),
	)

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return nil, pkgerrors.NewRateLimitError("provider rate limit exceeded (429)")
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, pkgerrors.NewExternalError("groq", fmt.Errorf("authentication failed with status %d: %s", resp.StatusCode, detail)).WithCode(CodeProviderAuth)
	default:
		return nil, pkgerrors.NewExternalError("groq", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, detail)).WithCode(CodeProvider)
	}
}

// withDefaultDeadline applies the configured timeout when the caller's
// context carries no deadline of its own
func (c *GroqClient) withDefaultDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.Timeout)
}

// classifyTransport distinguishes deadline expiry from other transport errors
func (c *GroqClient) classifyTransport(ctx context.Context, operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return pkgerrors.NewTimeoutError("completion " + operation).WithCause(err)
	}
	return pkgerrors.NewExternalError("groq", err).WithCode(CodeProvider)
}

// groqStream reads server-sent events off the response body, one delta per
// Recv call
type groqStream struct {
	ctx     context.Context
	cancel  context.CancelFunc
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

// Recv returns the next text fragment, io.EOF at end of stream, or a
// terminal error. Mid-stream failures are never retried.
func (s *groqStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		if err := s.ctx.Err(); err != nil {
			s.done = true
			return "", s.terminal(err)
		}

		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Tolerate malformed keep-alive frames
			continue
		}
		if chunk.Error != nil {
			s.done = true
			return "", pkgerrors.NewExternalError("groq", errors.New(chunk.Error.Message)).WithCode(CodeProvider)
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta != nil && chunk.Choices[0].Delta.Content != "" {
			return chunk.Choices[0].Delta.Content, nil
		}
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return "", s.terminal(err)
	}
	// Body ended without an explicit [DONE]; treat as normal completion
	return "", io.EOF
}

func (s *groqStream) terminal(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(s.ctx.Err(), context.DeadlineExceeded) {
		return pkgerrors.NewTimeoutError("completion stream").WithCause(err)
	}
	return pkgerrors.NewExternalError("groq", err).WithCode(CodeProvider)
}

// Close releases the response body and the stream's deadline
func (s *groqStream) Close() error {
	s.cancel()
	return s.body.Close()
}
