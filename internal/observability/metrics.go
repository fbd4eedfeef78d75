package observability

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"

	"github.com/quizai/quizai/internal/config"
)

// DefaultMetricsPort is used when metrics are enabled without a port.
const DefaultMetricsPort = 9090

var (
	// TelemetrySystem receives every counter, gauge and histogram the
	// service emits. Nil while metrics are disabled.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the scrape endpoint on its own port.
	PrometheusExporter *exporters.PrometheusExporter

	metricsPort int
)

// MetricsPort resolves the exporter port for cfg.
func MetricsPort(cfg config.MetricsConfig) int {
	if cfg.Port <= 0 {
		return DefaultMetricsPort
	}
	return cfg.Port
}

// InitMetrics starts the Prometheus exporter described by cfg and installs
// the telemetry system. It is a no-op when metrics are disabled.
func InitMetrics(namespace string, cfg config.MetricsConfig) error {
	if !cfg.Enabled {
		return nil
	}
	return startExporter(namespace, MetricsPort(cfg))
}

func startExporter(namespace string, port int) error {
	exporter := exporters.NewPrometheusExporter(namespace, fmt.Sprintf(":%d", port))
	if err := exporter.Start(); err != nil {
		return fmt.Errorf("start prometheus exporter on :%d: %w", port, err)
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: exporter})
	if err != nil {
		_ = exporter.Stop()
		return err
	}

	metricsPort = port
	if bound, err := portOf(exporter.GetAddr()); err == nil {
		metricsPort = bound
	}
	PrometheusExporter = exporter
	TelemetrySystem = sys
	return nil
}

// StopMetrics shuts the exporter down and detaches the telemetry system.
func StopMetrics() error {
	TelemetrySystem = nil
	if PrometheusExporter == nil {
		return nil
	}
	err := PrometheusExporter.Stop()
	PrometheusExporter = nil
	metricsPort = 0
	return err
}

// GetMetricsPort reports the port the exporter is bound to, or 0.
func GetMetricsPort() int {
	return metricsPort
}

func portOf(addr string) (int, error) {
	_, raw, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}
