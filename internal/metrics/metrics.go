// Package metrics exposes the pipeline's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FragmentsReceived counts fragments delivered by provider clients.
	FragmentsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livescribe_fragments_received_total",
		Help: "Fragments received from streaming provider clients.",
	})

	// FragmentsDropped counts fragments dropped for lack of a meeting.
	FragmentsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livescribe_fragments_dropped_total",
		Help: "Fragments dropped because no meeting could be resolved.",
	})

	// BroadcastEvents counts events fanned out over the push channel.
	BroadcastEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livescribe_broadcast_events_total",
		Help: "Events broadcast to viewers, by event type.",
	}, []string{"type"})

	// PersistFailures counts background storage writes that failed.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livescribe_persist_failures_total",
		Help: "Background persistence tasks that ended in error.",
	})

	// QueueFull counts persistence tasks rejected by a full queue.
	QueueFull = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livescribe_queue_full_total",
		Help: "Persistence tasks dropped because the task queue was full.",
	})

	// LiveConnections tracks currently open viewer connections.
	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livescribe_live_connections",
		Help: "Open push-channel viewer connections.",
	})
)
