package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/quizai/quizai/internal/observability"
)

const prometheusContentType = "text/plain; version=0.0.4"

// hopHeaders are connection-scoped and never copied from the exporter reply.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// metricsProxy serves /metrics on the API port by forwarding to the
// Prometheus exporter, which listens on its own port.
type metricsProxy struct {
	client *http.Client
	// port reports where the exporter listens; zero means it is not running.
	port func() int
}

func newMetricsProxy() *metricsProxy {
	return &metricsProxy{
		client: &http.Client{Timeout: 5 * time.Second},
		port: func() int {
			if observability.PrometheusExporter == nil {
				return 0
			}
			return observability.GetMetricsPort()
		},
	}
}

func (p *metricsProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	port := p.port()
	if port == 0 {
		HandleError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Metrics exporter not initialized"))
		return
	}

	target := fmt.Sprintf("http://127.0.0.1:%d/metrics", port)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		p.fail(w, r, "INTERNAL_ERROR", "Unable to construct metrics request", target, err)
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.fail(w, r, "EXTERNAL_SERVICE_ERROR", "Prometheus exporter unavailable", target, err)
		return
	}
	defer resp.Body.Close() // nolint:errcheck // read-only body

	for key, values := range resp.Header {
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if resp.Header.Get("Content-Type") == "" {
		w.Header().Set("Content-Type", prometheusContentType)
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to write metrics response", zap.Error(err))
	}
}

func (p *metricsProxy) fail(w http.ResponseWriter, r *http.Request, code, msg, target string, cause error) {
	envelope, _ := errors.NewErrorEnvelope(code, msg).WithContext(map[string]interface{}{
		"metrics_url":    target,
		"original_error": cause.Error(),
	})
	HandleError(w, r, envelope)
}
