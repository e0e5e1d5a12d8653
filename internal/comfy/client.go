package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"turbogen/internal/infra"
)

const (
	defaultPollInterval = time.Second
	defaultPollAttempts = 60

	maxResponseBytes = 4 << 20
	maxImageBytes    = 64 << 20
)

var errNotReady = errors.New("comfy: output not ready")

// Options configures the ComfyUI client.
type Options struct {
	// BaseURL is where the server reaches the backend.
	BaseURL string
	// PublicBaseURL prefixes image URLs handed to browsers. Defaults to BaseURL.
	PublicBaseURL  string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Logger         *infra.Logger
	Template       *Template
	Seed           func() int64
	PollInterval   time.Duration
	PollAttempts   int
}

// Client submits SDXL Turbo jobs to a ComfyUI backend and resolves them to image URLs.
type Client struct {
	baseURL       string
	publicBaseURL string
	httpClient    *http.Client
	logger        *infra.Logger
	template      Template
	seed          func() int64
	pollInterval  time.Duration
	pollAttempts  int
}

// NewClient constructs a client with defaults for everything left unset.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = infra.DefaultComfyBaseURL
	}
	public := strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/")
	if public == "" {
		public = base
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.RequestTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	tmpl := DefaultTemplate
	if opts.Template != nil {
		tmpl = *opts.Template
	}
	seed := opts.Seed
	if seed == nil {
		seed = NewSeed
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := opts.PollAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	return &Client{
		baseURL:       base,
		publicBaseURL: public,
		httpClient:    httpClient,
		logger:        logger,
		template:      tmpl,
		seed:          seed,
		pollInterval:  interval,
		pollAttempts:  attempts,
	}
}

// BaseURL returns the address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PublicBaseURL returns the prefix used for browser-facing image URLs.
func (c *Client) PublicBaseURL() string {
	return c.publicBaseURL
}

// Submit builds the job graph for prompt with a fresh seed and queues it.
// The prompt is used verbatim; callers reject blank input.
func (c *Client) Submit(ctx context.Context, prompt string) (string, error) {
	seed := c.seed()
	body, err := json.Marshal(promptRequest{Prompt: c.template.Build(prompt, seed)})
	if err != nil {
		return "", fmt.Errorf("comfy: encode prompt: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("comfy: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Msg("comfy: failed to submit prompt")
		return "", &TransportError{Op: "submit", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &TransportError{Op: "submit", Err: fmt.Errorf("comfy: read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		subErr := &SubmissionError{
			StatusCode: resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       truncate(strings.TrimSpace(string(raw)), 512),
		}
		c.logger.Error().Int("status", resp.StatusCode).Str("body", subErr.Body).Msg("comfy: prompt rejected")
		return "", subErr
	}

	var out PromptResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("comfy: decode prompt response: %w", err)
	}
	if out.PromptID == "" {
		return "", ErrEmptyPromptID
	}
	if len(out.NodeErrors) > 0 {
		// Node errors do not fail the submission; the job may still render.
		c.logger.Warn().
			Str("prompt_id", out.PromptID).
			Int("node_errors", len(out.NodeErrors)).
			Msg("comfy: backend reported node errors")
	}
	c.logger.Debug().
		Str("prompt_id", out.PromptID).
		Int("number", out.Number).
		Int64("seed", seed).
		Msg("comfy: prompt queued")
	return out.PromptID, nil
}

// History fetches the history record for promptID once.
func (c *Client) History(ctx context.Context, promptID string) (History, error) {
	endpoint := c.baseURL + "/history/" + url.PathEscape(promptID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("comfy: build history request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("comfy: history request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("comfy: history status %d", resp.StatusCode)
	}
	var history History
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&history); err != nil {
		return nil, fmt.Errorf("comfy: decode history: %w", err)
	}
	return history, nil
}

// ResolveArtifact polls the history of promptID until the output node lists
// an image. Failed polls are logged and retried; only the attempt budget or
// ctx ends the loop.
func (c *Client) ResolveArtifact(ctx context.Context, promptID string) (Artifact, error) {
	start := time.Now()
	attempts := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.pollInterval), uint64(c.pollAttempts-1)),
		ctx,
	)
	artifact, err := backoff.RetryWithData(func() (Artifact, error) {
		attempts++
		history, err := c.History(ctx, promptID)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn().Err(err).Str("prompt_id", promptID).Int("attempt", attempts).Msg("comfy: polling error")
			}
			return Artifact{}, err
		}
		if a, ok := history.FirstImage(promptID, OutputNode); ok {
			return a, nil
		}
		c.logger.Debug().Str("prompt_id", promptID).Int("attempt", attempts).Msg("comfy: output not ready")
		return Artifact{}, errNotReady
	}, policy)
	if err == nil {
		c.logger.Debug().
			Str("prompt_id", promptID).
			Str("filename", artifact.Filename).
			Int("attempts", attempts).
			Msg("comfy: output ready")
		return artifact, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Artifact{}, ctxErr
	}
	timeout := &GenerationTimeoutError{PromptID: promptID, Attempts: attempts, Elapsed: time.Since(start)}
	c.logger.Error().Str("detail", timeout.Detail()).Msg("comfy: generation timed out")
	return Artifact{}, timeout
}

// ResolveImage waits for promptID to render and returns the browser-facing image URL.
func (c *Client) ResolveImage(ctx context.Context, promptID string) (string, error) {
	artifact, err := c.ResolveArtifact(ctx, promptID)
	if err != nil {
		return "", err
	}
	return c.ImageURL(artifact), nil
}

// ImageURL builds the /view URL for a, with parameters in filename, type, subfolder order.
func (c *Client) ImageURL(a Artifact) string {
	return c.publicBaseURL + "/view?filename=" + url.QueryEscape(a.Filename) +
		"&type=" + url.QueryEscape(a.Type) +
		"&subfolder=" + url.QueryEscape(a.Subfolder)
}

// FetchImage downloads the bytes behind imageURL. URLs under the public base
// are fetched from the direct base instead.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	target := strings.TrimSpace(imageURL)
	if c.publicBaseURL != c.baseURL && strings.HasPrefix(target, c.publicBaseURL+"/") {
		target = c.baseURL + strings.TrimPrefix(target, c.publicBaseURL)
	}
	parsed, err := url.Parse(target)
	if err != nil || !parsed.IsAbs() {
		return nil, "", fmt.Errorf("comfy: invalid image url: %q", imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("comfy: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &TransportError{Op: "download", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("comfy: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("comfy: read image: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
