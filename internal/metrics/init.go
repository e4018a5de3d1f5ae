package metrics

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlpmetrichttp "go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const defaultPort = 8086

// InitMetrics initializes the metrics system with the given configuration
func InitMetrics(ctx context.Context, cfg MetricsConfig) error {
	initializeNodeIdentity(cfg)

	if err := InitProvider(ctx, cfg); err != nil {
		return eris.Wrap(err, "failed to initialize provider")
	}

	if err := createInstruments(); err != nil {
		return eris.Wrap(err, "failed to initialize instruments")
	}

	if err := RegisterCallbacks(); err != nil {
		return eris.Wrap(err, "failed to register callbacks")
	}

	if cfg.EnablePrometheus {
		port := cfg.Port
		if port == 0 {
			port = defaultPort
		}
		if err := StartPrometheusServer(ctx, port, cfg.Handlers); err != nil {
			return eris.Wrap(err, "failed to start Prometheus server")
		}
	}

	return nil
}

func initializeNodeIdentity(cfg MetricsConfig) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	alias := cfg.Alias
	if alias == "" {
		alias = hostname
	}

	metricsMutex.Lock()
	defer metricsMutex.Unlock()
	nodeIdentity = NodeIdentity{
		Alias:    alias,
		Hostname: hostname,
		LogsDir:  cfg.LogsDir,
	}
}

func sanitizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}

func InitProvider(ctx context.Context, cfg MetricsConfig, extra ...sdkmetric.Reader) error {
	metricsMutex.RLock()
	id := nodeIdentity
	metricsMutex.RUnlock()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("slot-timeline"),
		attribute.String("instance", id.Alias),
		attribute.String("host", id.Hostname),
		attribute.String("logs_dir", id.LogsDir),
	)

	var opts []sdkmetric.Option
	opts = append(opts, sdkmetric.WithResource(res))

	if cfg.EnablePrometheus {
		promExporter, err := prometheus.New(
			prometheus.WithoutScopeInfo(),
		)
		if err != nil {
			return eris.Wrap(err, "failed to create Prometheus exporter")
		}
		opts = append(opts, sdkmetric.WithReader(promExporter))
	}

	if cfg.EnableOTLP {
		options := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(sanitizeEndpoint(cfg.OTLPEndpoint)),
		}

		if cfg.OTLPInsecure {
			options = append(options, otlpmetrichttp.WithInsecure())
		}

		otlpExporter, err := otlpmetrichttp.New(ctx, options...)
		if err != nil {
			return eris.Wrap(err, "failed to create OTLP exporter")
		}

		reader := sdkmetric.NewPeriodicReader(
			otlpExporter,
			sdkmetric.WithInterval(15*time.Second),
		)
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	for _, r := range extra {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)

	meter = provider.Meter(
		"slot-timeline",
		metric.WithInstrumentationVersion("0.1.0"),
	)

	return nil
}
