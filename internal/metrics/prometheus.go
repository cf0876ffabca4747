package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// defaultBuckets covers sub-millisecond turns up to slow provider calls.
var defaultBuckets = []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30}

// promRecorder implements Recorder using Prometheus collectors.
type promRecorder struct {
	requestsTotal      *prometheus.CounterVec
	turnDuration       *prometheus.HistogramVec
	remindersScheduled prometheus.Counter
	remindersFired     *prometheus.CounterVec
	actorsActive       prometheus.Gauge
}

// NewPrometheus creates a Recorder registered against reg.
func NewPrometheus(reg prometheus.Registerer) Recorder {
	r := &promRecorder{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recall_requests_total",
			Help: "Inbound requests by outcome",
		}, []string{"outcome"}),

		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recall_actor_turn_duration_seconds",
			Help:    "Actor turn duration in seconds",
			Buckets: defaultBuckets,
		}, []string{"kind"}),

		remindersScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recall_reminders_scheduled_total",
			Help: "Scheduled reminder registrations",
		}),

		remindersFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recall_reminders_fired_total",
			Help: "Reminder dispatch attempts by result",
		}, []string{"success"}),

		actorsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recall_actors_active",
			Help: "Actors currently held in the registry",
		}),
	}

	reg.MustRegister(
		r.requestsTotal,
		r.turnDuration,
		r.remindersScheduled,
		r.remindersFired,
		r.actorsActive,
	)

	return r
}

func (r *promRecorder) RequestHandled(outcome string) {
	r.requestsTotal.WithLabelValues(outcome).Inc()
}

func (r *promRecorder) TurnDuration(kind string, d time.Duration) {
	r.turnDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (r *promRecorder) ReminderScheduled() {
	r.remindersScheduled.Inc()
}

func (r *promRecorder) ReminderFired(success bool) {
	r.remindersFired.WithLabelValues(boolToStr(success)).Inc()
}

func (r *promRecorder) ActorsActive(n int) {
	r.actorsActive.Set(float64(n))
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
