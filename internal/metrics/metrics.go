package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all EventPlus metrics
const namespace = "eventplus"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// AttendanceOperations counts join/leave attempts by outcome code
// (ok, already_confirmed, event_full, not_registered, permission_denied, error).
var AttendanceOperations = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attendance_operations_total",
		Help:      "Attendance join/leave operations by outcome",
	},
	[]string{"operation", "outcome"},
)

// CommentsSubmitted counts submissions by the status returned to the author.
var CommentsSubmitted = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "comments_submitted_total",
		Help:      "Comments submitted by resulting status",
	},
	[]string{"status"},
)

// ModerationVerdicts counts oracle calls by path (inline, retry) and result
// (safe, unsafe, unavailable).
var ModerationVerdicts = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "moderation_verdicts_total",
		Help:      "Moderation oracle results",
	},
	[]string{"path", "result"},
)

// ModerationLatency records oracle call latency in seconds.
var ModerationLatency = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "moderation_latency_seconds",
		Help:      "Moderation oracle call latency in seconds",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2, 3, 5, 10},
	},
	[]string{"path"},
)

// CommentsResolved counts terminal transitions by status and reason.
var CommentsResolved = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "comments_resolved_total",
		Help:      "Comments moved out of pending review",
	},
	[]string{"status", "reason"},
)

// Init registers runtime collectors and sets version information
func Init(version, commit, buildDate string) {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
