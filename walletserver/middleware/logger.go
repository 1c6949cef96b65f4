package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"rune-indexer/pkg/metrics"
)

func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		metrics.HTTPRequests.WithLabelValues(r.Method).Inc()
		logrus.Infof("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}
