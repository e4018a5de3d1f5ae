package metrics

import "net/http"

type MetricsConfig struct {
	EnablePrometheus bool
	EnableOTLP       bool
	OTLPEndpoint     string
	OTLPInsecure     bool
	Alias            string
	LogsDir          string
	Port             int
	// extra routes served next to /metrics and /health
	Handlers map[string]http.Handler
}
