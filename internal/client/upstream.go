// Package client provides the upstream HTTP client shared by all configured servers.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"apiproxy-go/internal/config"
	"apiproxy-go/internal/metrics"
	"apiproxy-go/internal/model"
)

// ErrResponseTooLarge is returned when an upstream body exceeds the configured limit.
var ErrResponseTooLarge = errors.New("upstream response too large")

// UpstreamClient sends requests to upstream servers and buffers their responses.
type UpstreamClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	maxBody    int64
}

// NewUpstreamClient creates an UpstreamClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &UpstreamClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "upstream_client"),
		metrics: m,
		maxBody: cfg.Upstream.MaxResponseBytes,
	}
}

// Send executes one request and returns the status, content type and the
// complete body. A non-positive body limit disables the size check.
func (c *UpstreamClient) Send(ctx context.Context, method, url string, header http.Header, body []byte) (*model.UpstreamResponse, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if header != nil {
		req.Header = header
	}

	c.logger.Debug("upstream request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"body_bytes", len(body),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	label := metrics.NormalizeMethod(req.Method)
	if err != nil {
		c.observe(label, start, 0)
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := c.readBody(resp.Body)
	c.observe(label, start, resp.StatusCode)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.UpstreamResponseBytes.Observe(float64(len(data)))
	}

	return &model.UpstreamResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

func (c *UpstreamClient) readBody(r io.Reader) ([]byte, error) {
	if c.maxBody <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read upstream body: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, c.maxBody)
	}
	return data, nil
}

// observe records latency, and the response count when status is known.
func (c *UpstreamClient) observe(method string, start time.Time, status int) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if status != 0 {
		c.metrics.UpstreamResponses.WithLabelValues(method, strconv.Itoa(status)).Inc()
	}
}
