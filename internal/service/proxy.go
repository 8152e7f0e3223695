// Package service implements the gateway pipeline: target resolution, URL
// construction, dispatch and response rendering.
package service

import (
	"context"
	"errors"
	"strings"

	"apiproxy-go/internal/config"
	"apiproxy-go/internal/metrics"
	"apiproxy-go/internal/model"
	"apiproxy-go/internal/representation"
	"apiproxy-go/internal/target"
)

// ProxyService runs proxy calls. It keeps no per-request state and is safe
// for concurrent use.
type ProxyService struct {
	targets   *target.Table
	transport Transport
	renderer  *representation.Renderer
	gateway   config.GatewayConfig
	metrics   *metrics.Metrics
}

// NewProxyService creates a ProxyService. The metrics parameter is optional.
func NewProxyService(targets *target.Table, transport Transport, renderer *representation.Renderer, cfg *config.Config, m *metrics.Metrics) *ProxyService {
	return &ProxyService{
		targets:   targets,
		transport: transport,
		renderer:  renderer,
		gateway:   cfg.Gateway,
		metrics:   m,
	}
}

// Proxy resolves the target, dispatches the request and renders the response.
//
// The representation is validated after the upstream call unless
// gateway.strict_representation is enabled, so by default an unknown
// representation still produces an upstream request.
func (s *ProxyService) Proxy(ctx context.Context, req *model.ProxyRequest) (*model.RenderedResponse, error) {
	resp, err := s.proxy(ctx, req)
	s.record(req.Representation, err)
	return resp, err
}

func (s *ProxyService) proxy(ctx context.Context, req *model.ProxyRequest) (*model.RenderedResponse, error) {
	base, err := s.targets.Resolve(req.Server)
	if err != nil {
		return nil, err
	}

	var rep representation.Representation
	if s.gateway.StrictRepresentation {
		if rep, err = representation.Parse(req.Representation); err != nil {
			return nil, err
		}
	}

	if !s.gateway.EscapeQuery {
		if err := checkLiteralQuery(req.Parameters); err != nil {
			return nil, err
		}
	}

	method := strings.ToUpper(req.Method)
	u := BuildURL(base, req.Option, req.Parameters, s.gateway.EscapeQuery)

	up, err := s.Dispatch(ctx, method, u, req.Parameters, req.LegacyEncoding)
	if err != nil {
		return nil, err
	}

	if !rep.Valid() {
		if rep, err = representation.Parse(req.Representation); err != nil {
			return nil, err
		}
	}
	return s.renderer.Render(rep, req.LegacyEncoding, up)
}

func (s *ProxyService) record(rep string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ProxyOutcomes.WithLabelValues(metrics.NormalizeRepresentation(rep), Outcome(err)).Inc()
}

// Outcome classifies err into a bounded metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, target.ErrUnknownServer):
		return metrics.OutcomeUnknownServer
	case errors.Is(err, representation.ErrInvalidRepresentation):
		return metrics.OutcomeInvalidRepresentation
	case errors.Is(err, representation.ErrMalformedResponse):
		return metrics.OutcomeMalformedResponse
	case errors.Is(err, ErrTransport):
		return metrics.OutcomeTransportError
	}
	return metrics.OutcomeInvalidRequest
}
