package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"resty.dev/v3"

	"github.com/modelscout/modelscout/internal/config"
	"github.com/modelscout/modelscout/internal/domain/catalog"
	"github.com/modelscout/modelscout/internal/infrastructure/logger"
	"github.com/modelscout/modelscout/internal/ratelimit"
	"github.com/modelscout/modelscout/internal/utils/httpclients"
)

const (
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffCap  = 8 * time.Second
	// proxiedAttempts bounds retries on the normal (proxied) path; the
	// designated direct/bypass path gets a single attempt.
	proxiedAttempts = 3
	directAttempts  = 1

	anthropicVersion    = "2023-06-01"
	completionMaxTokens = 4096
)

// Gateway executes calls against heterogeneous upstream provider APIs,
// applying admission control, bounded retry with backoff, and response
// normalization. One Gateway is shared by the whole pipeline.
type Gateway struct {
	limiter     *ratelimit.Limiter
	client      *resty.Client
	backoffBase time.Duration
	backoffCap  time.Duration
	maxAttempts int
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithTimeout sets the per-request timeout on the underlying client.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.client.SetTimeout(d) }
}

// WithBackoff overrides the retry backoff schedule.
func WithBackoff(base, cap time.Duration) Option {
	return func(g *Gateway) {
		g.backoffBase = base
		g.backoffCap = cap
	}
}

// WithDirectMode marks this gateway as the direct/bypass path: a single
// attempt per call, no retries.
func WithDirectMode() Option {
	return func(g *Gateway) { g.maxAttempts = directAttempts }
}

// WithClient replaces the underlying resty client.
func WithClient(client *resty.Client) Option {
	return func(g *Gateway) { g.client = client }
}

func New(limiter *ratelimit.Limiter, opts ...Option) *Gateway {
	g := &Gateway{
		limiter:     limiter,
		client:      httpclients.NewClient("GatewayClient"),
		backoffBase: defaultBackoffBase,
		backoffCap:  defaultBackoffCap,
		maxAttempts: proxiedAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ListModels fetches the provider's model listing and normalizes it into
// canonical records. A malformed item is dropped, not fatal; an entirely
// non-array payload yields an empty list with a logged warning.
func (g *Gateway) ListModels(ctx context.Context, key string, cfg config.Provider) ([]catalog.ModelRecord, error) {
	const op = "list_models"
	proto := ResolveProtocol(cfg)
	if err := g.checkCredential(op, key, cfg, proto); err != nil {
		return nil, err
	}
	if err := g.acquire(ctx, op, key); err != nil {
		return nil, err
	}

	var path string
	switch proto {
	case ProtocolAnthropic:
		path = "/v1/models"
	case ProtocolLocal:
		path = "/api/tags"
	default:
		path = "/models"
	}

	body, err := g.getRaw(ctx, op, key, cfg, proto, joinURL(cfg.BaseURL, path))
	if err != nil {
		return nil, err
	}

	switch proto {
	case ProtocolAnthropic:
		return normalizeAnthropicListing(key, cfg.Vendor, body), nil
	case ProtocolLocal:
		return normalizeLocalListing(key, cfg.Vendor, body), nil
	default:
		return normalizeOpenAIListing(key, cfg.Vendor, body), nil
	}
}

// CompleteText runs one chat completion and returns the assistant text.
func (g *Gateway) CompleteText(ctx context.Context, key string, cfg config.Provider, systemPrompt, userPrompt string) (string, error) {
	const op = "complete_text"
	proto := ResolveProtocol(cfg)
	if err := g.checkCredential(op, key, cfg, proto); err != nil {
		return "", err
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return "", &Error{Kind: KindPermanent, Op: op, Provider: key, Err: fmt.Errorf("model identifier missing for provider %q", key)}
	}
	if err := g.acquire(ctx, op, key); err != nil {
		return "", err
	}

	switch proto {
	case ProtocolAnthropic:
		return g.completeAnthropic(ctx, op, key, cfg, systemPrompt, userPrompt)
	case ProtocolLocal:
		return g.completeLocal(ctx, op, key, cfg, systemPrompt, userPrompt)
	default:
		return g.completeOpenAI(ctx, op, key, cfg, systemPrompt, userPrompt)
	}
}

// CompleteJSON runs one chat completion and parses the assistant text as a
// JSON object, tolerating markdown code fences around it.
func (g *Gateway) CompleteJSON(ctx context.Context, key string, cfg config.Provider, systemPrompt, userPrompt string) (map[string]any, error) {
	text, err := g.CompleteText(ctx, key, cfg, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	payload := extractJSONObject(text)
	var parsed map[string]any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Op: "complete_json", Provider: key, Err: fmt.Errorf("response is not a JSON object: %w", err)}
	}
	return parsed, nil
}

func (g *Gateway) checkCredential(op, key string, cfg config.Provider, proto Protocol) error {
	if proto.RequiresCredential() && strings.TrimSpace(cfg.APIKey) == "" {
		return &Error{Kind: KindCredentialMissing, Op: op, Provider: key, Err: fmt.Errorf("provider %q has no credential configured", key)}
	}
	return nil
}

func (g *Gateway) acquire(ctx context.Context, op, key string) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Acquire(ctx); err != nil {
		return &Error{Kind: KindCancelled, Op: op, Provider: key, Err: err}
	}
	return nil
}

func (g *Gateway) completeOpenAI(ctx context.Context, op, key string, cfg config.Provider, systemPrompt, userPrompt string) (string, error) {
	request := openai.ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}

	var respBody openai.ChatCompletionResponse
	_, err := g.do(ctx, op, key, func() (*resty.Response, error) {
		req := g.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(request).
			SetResult(&respBody)
		applyAuth(req, cfg, ProtocolOpenAI)
		return req.Post(joinURL(cfg.BaseURL, "/chat/completions"))
	})
	if err != nil {
		return "", err
	}
	if len(respBody.Choices) == 0 {
		return "", &Error{Kind: KindMalformedResponse, Op: op, Provider: key, Err: fmt.Errorf("completion response has no choices")}
	}
	return respBody.Choices[0].Message.Content, nil
}

func (g *Gateway) completeAnthropic(ctx context.Context, op, key string, cfg config.Provider, systemPrompt, userPrompt string) (string, error) {
	request := map[string]any{
		"model":      cfg.Model,
		"max_tokens": completionMaxTokens,
		"system":     systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": userPrompt},
		},
	}

	var respBody struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	_, err := g.do(ctx, op, key, func() (*resty.Response, error) {
		req := g.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(request).
			SetResult(&respBody)
		applyAuth(req, cfg, ProtocolAnthropic)
		return req.Post(joinURL(cfg.BaseURL, "/v1/messages"))
	})
	if err != nil {
		return "", err
	}
	for _, block := range respBody.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", &Error{Kind: KindMalformedResponse, Op: op, Provider: key, Err: fmt.Errorf("completion response has no text block")}
}

func (g *Gateway) completeLocal(ctx context.Context, op, key string, cfg config.Provider, systemPrompt, userPrompt string) (string, error) {
	request := map[string]any{
		"model":  cfg.Model,
		"stream": false,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}

	var respBody struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	_, err := g.do(ctx, op, key, func() (*resty.Response, error) {
		req := g.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(request).
			SetResult(&respBody)
		applyAuth(req, cfg, ProtocolLocal)
		return req.Post(joinURL(cfg.BaseURL, "/api/chat"))
	})
	if err != nil {
		return "", err
	}
	if respBody.Message.Content == "" {
		return "", &Error{Kind: KindMalformedResponse, Op: op, Provider: key, Err: fmt.Errorf("completion response has no message content")}
	}
	return respBody.Message.Content, nil
}

// getRaw issues a GET returning the raw response body, with retry.
func (g *Gateway) getRaw(ctx context.Context, op, key string, cfg config.Provider, proto Protocol, url string) ([]byte, error) {
	var body []byte
	_, err := g.do(ctx, op, key, func() (*resty.Response, error) {
		req := g.client.R().
			SetContext(ctx).
			SetDoNotParseResponse(true)
		applyAuth(req, cfg, proto)
		resp, err := req.Get(url)
		if err != nil {
			return resp, err
		}
		if resp.IsError() {
			resp.RawResponse.Body.Close()
			return resp, nil
		}
		defer resp.RawResponse.Body.Close()
		body, err = io.ReadAll(resp.RawResponse.Body)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// do runs one upstream call with bounded retry. Transient failures back off
// exponentially (doubling, capped), honoring an upstream Retry-After hint.
// Cancellation aborts an in-flight request or a pending backoff wait and is
// never retried.
func (g *Gateway) do(ctx context.Context, op, key string, send func() (*resty.Response, error)) (*resty.Response, error) {
	log := logger.GetLogger()

	for attempt := 1; ; attempt++ {
		resp, err := send()

		if err != nil {
			if ctx.Err() != nil {
				return nil, &Error{Kind: KindCancelled, Op: op, Provider: key, Err: ctx.Err()}
			}
			// Transport-level failure: connection reset, timeout, DNS.
			gerr := &Error{Kind: KindTransient, Op: op, Provider: key, Err: err}
			if attempt >= g.maxAttempts {
				return nil, gerr
			}
			if err := g.backoffWait(ctx, op, key, attempt, 0); err != nil {
				return nil, err
			}
			log.Warn().Str("op", op).Str("provider", key).Int("attempt", attempt).Err(err).Msg("retrying after transport error")
			continue
		}

		if resp.IsError() {
			status := resp.StatusCode()
			gerr := &Error{
				Kind:       kindForStatus(status),
				Op:         op,
				Provider:   key,
				Status:     status,
				RetryAfter: retryAfterHint(resp),
			}
			if gerr.Kind != KindTransient || attempt >= g.maxAttempts {
				return nil, gerr
			}
			if err := g.backoffWait(ctx, op, key, attempt, gerr.RetryAfter); err != nil {
				return nil, err
			}
			log.Warn().Str("op", op).Str("provider", key).Int("attempt", attempt).Int("status", status).Msg("retrying after transient status")
			continue
		}

		return resp, nil
	}
}

// backoffWait sleeps the backoff delay for the given attempt, preferring an
// explicit upstream hint. Cancellation aborts the wait.
func (g *Gateway) backoffWait(ctx context.Context, op, key string, attempt int, hint time.Duration) error {
	delay := g.backoffBase << (attempt - 1)
	if delay > g.backoffCap {
		delay = g.backoffCap
	}
	if hint > 0 {
		delay = hint
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &Error{Kind: KindCancelled, Op: op, Provider: key, Err: ctx.Err()}
	case <-timer.C:
		return nil
	}
}

// applyAuth sets the protocol's authentication headers plus any custom headers
// from the provider config.
func applyAuth(req *resty.Request, cfg config.Provider, proto Protocol) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	switch proto {
	case ProtocolAnthropic:
		if apiKey != "" {
			req.SetHeader("x-api-key", apiKey)
		}
		req.SetHeader("anthropic-version", anthropicVersion)
	case ProtocolLocal:
		// No credential required; honor one if configured anyway.
		if apiKey != "" {
			req.SetHeader("Authorization", fmt.Sprintf("Bearer %s", apiKey))
		}
	default:
		if apiKey != "" {
			req.SetHeader("Authorization", fmt.Sprintf("Bearer %s", apiKey))
		}
	}
	for k, v := range cfg.Headers {
		req.SetHeader(k, v)
	}
}

func retryAfterHint(resp *resty.Response) time.Duration {
	if resp == nil || resp.RawResponse == nil {
		return 0
	}
	raw := strings.TrimSpace(resp.RawResponse.Header.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := time.Parse(time.RFC1123, raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func joinURL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// extractJSONObject strips markdown fences and surrounding prose, keeping the
// outermost {...} span.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}
