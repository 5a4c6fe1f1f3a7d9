// Package metricshttp exposes the engine's health and counters over HTTP,
// adapted from internal/metrics/metrics.go's expvar-backed singleton and
// monitor/server.go's http.Server wrapping, repurposed from campaign/send
// counters to the engine's own domain counters (chunks, findings, lock
// acquisitions, digest sends).
package metricshttp

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Metrics holds the engine's domain counters.
type Metrics struct {
	ChunksProcessed   *expvar.Int
	FindingsMustDo    *expvar.Int
	FindingsMustKnow  *expvar.Int
	LockAcquisitions  *expvar.Int
	LockContentions   *expvar.Int
	DigestsSent       *expvar.Int
	DigestsFailed     *expvar.Int
	PassivePasses     *expvar.Int
	RunsCompleted     *expvar.Int
	RunsErrored       *expvar.Int
	RunsTimedOut      *expvar.Int
	startTime         time.Time
	log               *logrus.Logger
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide Metrics singleton, matching
// internal/metrics.GetMetrics's once.Do construction.
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			ChunksProcessed:  expvar.NewInt("inboxtriage_chunks_processed_total"),
			FindingsMustDo:   expvar.NewInt("inboxtriage_findings_must_do_total"),
			FindingsMustKnow: expvar.NewInt("inboxtriage_findings_must_know_total"),
			LockAcquisitions: expvar.NewInt("inboxtriage_lock_acquisitions_total"),
			LockContentions:  expvar.NewInt("inboxtriage_lock_contentions_total"),
			DigestsSent:      expvar.NewInt("inboxtriage_digests_sent_total"),
			DigestsFailed:    expvar.NewInt("inboxtriage_digests_failed_total"),
			PassivePasses:    expvar.NewInt("inboxtriage_passive_passes_total"),
			RunsCompleted:    expvar.NewInt("inboxtriage_runs_completed_total"),
			RunsErrored:      expvar.NewInt("inboxtriage_runs_errored_total"),
			RunsTimedOut:     expvar.NewInt("inboxtriage_runs_timed_out_total"),
			startTime:        time.Now(),
			log:              logrus.New(),
		}
		expvar.Publish("inboxtriage_uptime_seconds", expvar.Func(func() any {
			return int64(time.Since(instance.startTime).Seconds())
		}))
	})
	return instance
}

// Server is the health/metrics HTTP endpoint, wrapping expvar's default
// handler plus a liveness check.
type Server struct {
	httpServer *http.Server
	log        *logrus.Logger
}

// NewServer builds a Server listening on port, serving /debug/vars
// (expvar's default mux registration) and /healthz.
func NewServer(port int, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/debug/vars", expvar.Handler())

	return &Server{
		httpServer: &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux},
		log:        log,
	}
}

// Start blocks serving until the server is stopped or fails.
func (s *Server) Start() error {
	s.log.Infof("starting metrics/health server on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
