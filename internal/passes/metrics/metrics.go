package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics provides observability for the passes module.
type Metrics struct {
	PassesCreated     prometheus.Counter
	PassesUpdated     prometheus.Counter
	StatusChanges     *prometheus.CounterVec
	EditsRejected     prometheus.Counter
	ImagesStored      prometheus.Counter
	ImageBytes        prometheus.Counter
	CreateDuration    prometheus.Histogram
	UpdateDuration    prometheus.Histogram
	EventsPublished   *prometheus.CounterVec
	EventPublishError prometheus.Counter
}

// New registers the passes metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the passes metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PassesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "mountpass_passes_created_total",
			Help: "Total number of passes submitted",
		}),
		PassesUpdated: f.NewCounter(prometheus.CounterOpts{
			Name: "mountpass_passes_updated_total",
			Help: "Total number of successful pass edits",
		}),
		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mountpass_pass_status_changes_total",
			Help: "Moderation status changes by target status",
		}, []string{"status"}),
		EditsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "mountpass_pass_edits_rejected_total",
			Help: "Edits refused because the pass left the new status",
		}),
		ImagesStored: f.NewCounter(prometheus.CounterOpts{
			Name: "mountpass_images_stored_total",
			Help: "Total number of pass images written to the media store",
		}),
		ImageBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "mountpass_image_bytes_total",
			Help: "Total bytes of pass images written to the media store",
		}),
		CreateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mountpass_create_pass_duration_seconds",
			Help:    "Duration of pass submissions including image writes",
			Buckets: durationBuckets,
		}),
		UpdateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mountpass_update_pass_duration_seconds",
			Help:    "Duration of pass edits",
			Buckets: durationBuckets,
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mountpass_outbox_events_published_total",
			Help: "Outbox events delivered to the broker by type",
		}, []string{"type"}),
		EventPublishError: f.NewCounter(prometheus.CounterOpts{
			Name: "mountpass_outbox_publish_errors_total",
			Help: "Failed outbox publish attempts",
		}),
	}
}

func (m *Metrics) IncrementPassCreated() {
	m.PassesCreated.Inc()
}

func (m *Metrics) IncrementPassUpdated() {
	m.PassesUpdated.Inc()
}

func (m *Metrics) IncrementStatusChange(status string) {
	m.StatusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementEditRejected() {
	m.EditsRejected.Inc()
}

// ObserveImageStored records one image of size bytes.
func (m *Metrics) ObserveImageStored(size int64) {
	m.ImagesStored.Inc()
	m.ImageBytes.Add(float64(size))
}

// ObserveCreate records the duration of a submission.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

// ObserveUpdate records the duration of an edit.
func (m *Metrics) ObserveUpdate(start time.Time) {
	m.UpdateDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncrementPublishError() {
	m.EventPublishError.Inc()
}
