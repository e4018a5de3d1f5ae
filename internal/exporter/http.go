package exporter

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/validaoxyz/slot-timeline/internal/logger"
	"github.com/validaoxyz/slot-timeline/internal/snapshot"
)

// Handler serves the current snapshot. JSON unless msgpack is requested via
// ?format= or the Accept header; 503 until a snapshot has been published.
func (l *Live) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		format, err := requestFormat(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data := l.Snapshot()
		if data == nil {
			http.Error(w, "no snapshot published yet", http.StatusServiceUnavailable)
			return
		}

		var buf bytes.Buffer
		if err := snapshot.Encode(&buf, data, format); err != nil {
			logger.ErrorComponent("exporter", "Encoding snapshot failed: %v", err)
			http.Error(w, "encoding snapshot failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(buf.Bytes())
		}
	})
}

func requestFormat(r *http.Request) (snapshot.Format, error) {
	if q := r.URL.Query().Get("format"); q != "" {
		return snapshot.ParseFormat(q)
	}
	if strings.Contains(r.Header.Get("Accept"), snapshot.FormatMsgpack.ContentType()) {
		return snapshot.FormatMsgpack, nil
	}
	return snapshot.FormatJSON, nil
}
