package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"resty.dev/v3"

	"github.com/modelscout/modelscout/internal/infrastructure/logger"
	"github.com/modelscout/modelscout/internal/ratelimit"
	"github.com/modelscout/modelscout/internal/utils/httpclients"
)

const transportTimeout = 30 * time.Second

// transport issues catalog page requests, preferring a host-supplied proxy
// rewrite and falling back to a direct request when the proxied one fails.
type transport struct {
	client  *resty.Client
	proxy   httpclients.ProxyFunc
	limiter *ratelimit.Limiter
}

func newTransport(name string, proxy httpclients.ProxyFunc, limiter *ratelimit.Limiter) *transport {
	client := httpclients.NewClient(name)
	client.SetTimeout(transportTimeout)
	return &transport{client: client, proxy: proxy, limiter: limiter}
}

// get fetches the raw body at url, going through the proxy first when one is
// configured.
func (t *transport) get(ctx context.Context, url string) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
	}

	if t.proxy != nil {
		body, err := t.getDirect(ctx, t.proxy(url))
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log := logger.GetLogger()
		log.Debug().
			Str("url", url).
			Err(err).
			Msg("proxied fetch failed, falling back to direct request")
	}
	return t.getDirect(ctx, url)
}

func (t *transport) getDirect(ctx context.Context, url string) ([]byte, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.RawResponse.Body.Close()

	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s returned status %d", url, resp.StatusCode())
	}
	body, err := io.ReadAll(resp.RawResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	return body, nil
}
