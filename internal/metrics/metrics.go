// Package metrics builds the process-wide tally scope and its prometheus
// exposition handler.
package metrics

import (
	"io"
	"net/http"
	"time"

	"github.com/uber-go/tally"
	"github.com/uber-go/tally/prometheus"
	"go.uber.org/zap"
)

const flushInterval = time.Second

// Metrics bundles the root scope with the handler that serves it.
type Metrics struct {
	Scope   tally.Scope
	Handler http.Handler
	closer  io.Closer
}

// New creates a root scope reporting to a prometheus registry. Registration
// errors are logged rather than fatal so a duplicate metric never takes the
// server down.
func New(prefix string, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	reporter := prometheus.NewReporter(prometheus.Options{
		OnRegisterError: func(err error) {
			logger.Warn("metric registration failed", zap.Error(err))
		},
	})
	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:          prefix,
		Tags:            map[string]string{"service": prefix},
		CachedReporter:  reporter,
		Separator:       prometheus.DefaultSeparator,
		SanitizeOptions: &prometheus.DefaultSanitizerOpts,
	}, flushInterval)

	return &Metrics{Scope: scope, Handler: reporter.HTTPHandler(), closer: closer}
}

// Close flushes and stops the reporting loop.
func (m *Metrics) Close() error {
	return m.closer.Close()
}
