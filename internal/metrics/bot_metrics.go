package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	cserrors "github.com/ccie14023/cataspark/internal/errors"
)

var (
	// Poll loop metrics
	PollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cataspark_polls_total",
			Help: "Total number of chat room polls",
		},
	)

	PollErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cataspark_poll_errors_total",
			Help: "Total number of chat room polls that failed to list messages",
		},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cataspark_commands_total",
			Help: "Total number of new messages dispatched by matched command",
		},
		[]string{"command"}, // "none" when nothing matched
	)

	// Device metrics
	DeviceQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cataspark_device_queries_total",
			Help: "Total number of device operations by query and outcome",
		},
		[]string{"query", "outcome"},
	)

	DeviceQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cataspark_device_query_duration_seconds",
			Help:    "Duration of device operations",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"query"},
	)

	// Outbound API metrics
	ChatPostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cataspark_chat_posts_total",
			Help: "Total number of messages posted to the chat room",
		},
		[]string{"status"}, // success, failed
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cataspark_uploads_total",
			Help: "Total number of diagram uploads",
		},
		[]string{"status"},
	)
)

// RecordPoll records one poll and whether listing the room failed.
func RecordPoll(err error) {
	PollsTotal.Inc()
	if err != nil {
		PollErrorsTotal.Inc()
	}
}

// RecordCommand records a dispatched message.
func RecordCommand(name string) {
	if name == "" {
		name = "none"
	}
	CommandsTotal.WithLabelValues(name).Inc()
}

// RecordDeviceQuery records a device operation outcome, classified by error kind.
func RecordDeviceQuery(query string, started time.Time, err error) {
	DeviceQueriesTotal.WithLabelValues(query, string(cserrors.KindOf(err))).Inc()
	DeviceQueryDuration.WithLabelValues(query).Observe(time.Since(started).Seconds())
}

// RecordChatPost records a post to the chat room.
func RecordChatPost(err error) {
	ChatPostsTotal.WithLabelValues(statusLabel(err)).Inc()
}

// RecordUpload records a diagram upload.
func RecordUpload(err error) {
	UploadsTotal.WithLabelValues(statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
