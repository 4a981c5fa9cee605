// Package metrics exposes Prometheus counters for the request lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsCreated     prometheus.Counter
	StatusTransitions   *prometheus.CounterVec
	NotificationsPosted prometheus.Counter
	UploadsStored       *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry and returns both.
// A per-instance registry keeps tests from colliding on the default one.
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		RequestsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "desakita_requests_created_total",
			Help: "Total number of submitted requests",
		}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "desakita_status_transitions_total",
			Help: "Total number of status transitions by target status",
		}, []string{"status"}),
		NotificationsPosted: factory.NewCounter(prometheus.CounterOpts{
			Name: "desakita_notifications_posted_total",
			Help: "Total number of notifications written to the sink",
		}),
		UploadsStored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "desakita_uploads_stored_total",
			Help: "Total number of stored uploads by folder",
		}, []string{"folder"}),
	}, reg
}
