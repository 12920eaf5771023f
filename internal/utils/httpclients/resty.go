package httpclients

import (
	"context"
	"time"

	"github.com/modelscout/modelscout/internal/infrastructure/logger"

	"resty.dev/v3"
)

type HTTPClientStartsAt struct{}

// ProxyFunc rewrites an outbound URL so the request is routed through a
// host-supplied forwarding proxy. A nil ProxyFunc means direct requests only.
type ProxyFunc func(rawURL string) string

// NewClient builds a resty client with debug logging of every outbound request.
func NewClient(clientName string) *resty.Client {
	client := resty.New()
	client.AddRequestMiddleware(func(c *resty.Client, r *resty.Request) error {
		start := time.Now()
		ctx := context.WithValue(r.Context(), HTTPClientStartsAt{}, start)
		r.SetContext(ctx)
		return nil
	})
	client.AddResponseMiddleware(func(c *resty.Client, r *resty.Response) error {
		log := logger.GetLogger()
		startTime, _ := r.Request.Context().Value(HTTPClientStartsAt{}).(time.Time)
		latency := time.Since(startTime)

		log.Debug().
			Str("client", clientName).
			Int("status", r.StatusCode()).
			Str("method", r.Request.RawRequest.Method).
			Str("path", r.Request.RawRequest.URL.Path).
			Str("query", r.Request.RawRequest.URL.RawQuery).
			Dur("latency", latency).
			Msg("HTTP client request")
		return nil
	})
	return client
}
