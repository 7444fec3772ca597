package web

import (
	"net/http"
	"time"

	"github.com/signview/signview/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

// accessLog logs one line per request. Successful healthcheck probes are
// suppressed so the poller does not flood the log.
func accessLog(log logger.Logger, next http.Handler) http.Handler {
	log = log.WithPrefix("[http]")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/healthcheck" && rec.status == http.StatusOK {
			return
		}
		log.Info("%s %s %s %d %d %s", r.RemoteAddr, r.Method, r.URL.RequestURI(),
			rec.status, rec.bytes, time.Since(start).Round(time.Millisecond))
	})
}
