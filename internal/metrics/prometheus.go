package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"

	"github.com/validaoxyz/slot-timeline/internal/logger"
)

// StartPrometheusServer serves /metrics, /health and any extra handlers on port.
// The port is bound before returning, so an address in use is reported here.
func StartPrometheusServer(ctx context.Context, port int, handlers map[string]http.Handler) error {
	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return eris.Wrapf(err, "listen on %s", addr)
	}

	server := &http.Server{
		Handler:           NewServeMux(handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoComponent("metrics", "Starting metrics server on port %d", port)
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.ErrorComponent("metrics", "Metrics server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.ErrorComponent("metrics", "Error shutting down metrics server: %v", err)
		}
	}()

	return nil
}

// NewServeMux builds the metrics mux without starting a server
func NewServeMux(handlers map[string]http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	promHandler := promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		// collection past this is answered with 503
		Timeout: 30 * time.Second,
	})

	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.DebugComponent("metrics", "Metrics endpoint called from %s", r.RemoteAddr)
		promHandler.ServeHTTP(w, r)
	})

	mux.Handle("/metrics", metricsHandler)

	// health check endpoint for debugging
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK\n"))
	})

	for pattern, h := range handlers {
		mux.Handle(pattern, h)
	}

	return mux
}
