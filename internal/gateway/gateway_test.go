package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelscout/modelscout/internal/config"
)

func providerFor(ts *httptest.Server, vendor string) config.Provider {
	return config.Provider{
		Key:     "test-provider",
		Vendor:  vendor,
		Enabled: true,
		APIKey:  "sk-test",
		Model:   "test-model",
		BaseURL: ts.URL,
	}
}

func TestRetryTransientThenSuccess(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "model-a"}},
		})
	}))
	defer ts.Close()

	base := 20 * time.Millisecond
	g := New(nil, WithBackoff(base, 200*time.Millisecond))

	start := time.Now()
	records, err := g.ListModels(context.Background(), "test", providerFor(ts, "openai"))
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	// Two backoff waits: base + 2*base.
	assert.GreaterOrEqual(t, elapsed, 3*base-5*time.Millisecond)
}

func TestPermanentStatusNeverRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	g := New(nil, WithBackoff(10*time.Millisecond, 50*time.Millisecond))

	_, err := g.ListModels(context.Background(), "test", providerFor(ts, "openai"))
	require.Error(t, err)
	assert.Equal(t, KindPermanent, KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusNotFound, gerr.Status)
}

func TestRetryExhaustionSurfacesTransient(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	g := New(nil, WithBackoff(5*time.Millisecond, 20*time.Millisecond))

	_, err := g.ListModels(context.Background(), "test", providerFor(ts, "openai"))
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryHonorsRetryAfterHint(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"id": "m"}}})
	}))
	defer ts.Close()

	g := New(nil, WithBackoff(time.Millisecond, 5*time.Millisecond))

	start := time.Now()
	_, err := g.ListModels(context.Background(), "test", providerFor(ts, "openai"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestDirectModeSingleAttempt(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	g := New(nil, WithDirectMode(), WithBackoff(time.Millisecond, 5*time.Millisecond))

	_, err := g.ListModels(context.Background(), "test", providerFor(ts, "openai"))
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCredentialMissingFailsBeforeNetwork(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	cfg := providerFor(ts, "openai")
	cfg.APIKey = ""

	g := New(nil)
	_, err := g.ListModels(context.Background(), "test", cfg)
	require.Error(t, err)
	assert.Equal(t, KindCredentialMissing, KindOf(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestLocalProtocolNeedsNoCredential(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "qwen2.5:7b", "details": map[string]any{"parameter_size": "7B", "family": "qwen2"}},
			},
		})
	}))
	defer ts.Close()

	cfg := providerFor(ts, "ollama")
	cfg.APIKey = ""

	g := New(nil)
	records, err := g.ListModels(context.Background(), "local", cfg)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "local:qwen2.5:7b", records[0].ID)
	assert.Equal(t, "7B", records[0].Parameters)
	assert.True(t, records[0].Hosting.OnPremiseFriendly)
	assert.True(t, records[0].HasTag("base:qwen2"))
}

func TestListModelsDropsMalformedItems(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"good-model","context_length":8192},{"name":"no id here"},"not even an object"]}`)
	}))
	defer ts.Close()

	g := New(nil)
	records, err := g.ListModels(context.Background(), "test", providerFor(ts, "openai"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "test:good-model", records[0].ID)
	assert.Equal(t, 8192, records[0].ContextWindow)
}

func TestListModelsNonArrayPayloadYieldsEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":"unexpectedly a string"}`)
	}))
	defer ts.Close()

	g := New(nil)
	records, err := g.ListModels(context.Background(), "test", providerFor(ts, "openai"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListModelsParsesOpenRouterPricing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"qwen/qwen-2.5","name":"Qwen 2.5","pricing":{"prompt":"0.0000007","completion":"0.0000016"}}]}`)
	}))
	defer ts.Close()

	g := New(nil)
	records, err := g.ListModels(context.Background(), "openrouter", providerFor(ts, "openrouter"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Qwen 2.5", records[0].Name)
	require.Len(t, records[0].Pricing, 2)
	assert.Equal(t, "prompt_token", records[0].Pricing[0].Unit)
}

func TestCompleteTextOpenAI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`)
	}))
	defer ts.Close()

	g := New(nil)
	text, err := g.CompleteText(context.Background(), "test", providerFor(ts, "openai"), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
}

func TestCompleteJSONStripsCodeFences(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := "```json\n{\"verdict\":\"safe\"}\n```"
		payload := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": body}}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer ts.Close()

	g := New(nil)
	parsed, err := g.CompleteJSON(context.Background(), "test", providerFor(ts, "openai"), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "safe", parsed["verdict"])
}

func TestCompleteJSONMalformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"I cannot answer in JSON, sorry"}}]}`)
	}))
	defer ts.Close()

	g := New(nil)
	_, err := g.CompleteJSON(context.Background(), "test", providerFor(ts, "openai"), "sys", "user")
	require.Error(t, err)
	assert.Equal(t, KindMalformedResponse, KindOf(err))
}

func TestCancellationAbortsBackoff(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	g := New(nil, WithBackoff(5*time.Second, 10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := g.ListModels(ctx, "test", providerFor(ts, "openai"))
	require.Error(t, err)
	assert.Equal(t, KindCancelled, KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestAnthropicListing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))
		fmt.Fprint(w, `{"data":[{"id":"claude-x","display_name":"Claude X","created_at":"2025-02-01T00:00:00Z"}]}`)
	}))
	defer ts.Close()

	g := New(nil)
	records, err := g.ListModels(context.Background(), "anthropic", providerFor(ts, "anthropic"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Claude X", records[0].Name)
	require.NotNil(t, records[0].ReleaseDate)
}
