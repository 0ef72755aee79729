package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DBQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// DBErrors counts failed queries by operation and class (see classifyDBError).
	DBErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_errors_total",
			Help:      "Database errors by operation and class",
		},
		[]string{"operation", "error_type"},
	)
)

// RecordQuery observes one repository call. Use it with defer:
//
//	start := time.Now()
//	defer func() { metrics.RecordQuery("events.reserve_seat", start, err) }()
func RecordQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		DBErrors.WithLabelValues(operation, classifyDBError(err)).Inc()
	}
}

// RecordRetry counts a transaction that failed transiently and is run again.
func RecordRetry(operation string) {
	DBErrors.WithLabelValues(operation, "retried").Inc()
}

// classifyDBError keeps the error_type label to a handful of values. Constraint
// violations are expected outcomes here (a full event, a duplicate username)
// and are counted apart from real failures.
func classifyDBError(err error) string {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &pgErr):
		switch pgErr.Code {
		case "40001", "40P01":
			return "serialization"
		case "23505", "23514", "23503":
			return "constraint"
		}
		return "query_error"
	default:
		return "query_error"
	}
}

var poolDescs = struct {
	total, acquired, idle, max, acquires, emptyAcquires, canceledAcquires, acquireSeconds *prometheus.Desc
}{
	total:            prometheus.NewDesc(namespace+"_db_connections_open", "Open database connections", nil, nil),
	acquired:         prometheus.NewDesc(namespace+"_db_connections_in_use", "Connections currently acquired", nil, nil),
	idle:             prometheus.NewDesc(namespace+"_db_connections_idle", "Idle connections", nil, nil),
	max:              prometheus.NewDesc(namespace+"_db_connections_max_open", "Pool size limit", nil, nil),
	acquires:         prometheus.NewDesc(namespace+"_db_acquires_total", "Connections acquired from the pool", nil, nil),
	emptyAcquires:    prometheus.NewDesc(namespace+"_db_empty_acquires_total", "Acquires that had to wait for a connection", nil, nil),
	canceledAcquires: prometheus.NewDesc(namespace+"_db_canceled_acquires_total", "Acquires abandoned by their context", nil, nil),
	acquireSeconds:   prometheus.NewDesc(namespace+"_db_acquire_wait_seconds_total", "Time spent waiting for connections", nil, nil),
}

// PoolCollector reads pgxpool statistics at scrape time.
type PoolCollector struct {
	pool *pgxpool.Pool
}

var _ prometheus.Collector = (*PoolCollector)(nil)

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolDescs.total
	ch <- poolDescs.acquired
	ch <- poolDescs.idle
	ch <- poolDescs.max
	ch <- poolDescs.acquires
	ch <- poolDescs.emptyAcquires
	ch <- poolDescs.canceledAcquires
	ch <- poolDescs.acquireSeconds
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	stat := c.pool.Stat()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}
	gauge(poolDescs.total, float64(stat.TotalConns()))
	gauge(poolDescs.acquired, float64(stat.AcquiredConns()))
	gauge(poolDescs.idle, float64(stat.IdleConns()))
	gauge(poolDescs.max, float64(stat.MaxConns()))
	counter(poolDescs.acquires, float64(stat.AcquireCount()))
	counter(poolDescs.emptyAcquires, float64(stat.EmptyAcquireCount()))
	counter(poolDescs.canceledAcquires, float64(stat.CanceledAcquireCount()))
	counter(poolDescs.acquireSeconds, stat.AcquireDuration().Seconds())
}

var registerPoolOnce sync.Once

// RegisterPool exposes pool statistics on Registry. Only the first pool is
// registered; a process serves one database.
func RegisterPool(pool *pgxpool.Pool) error {
	var err error
	registerPoolOnce.Do(func() {
		err = Registry.Register(&PoolCollector{pool: pool})
	})
	return err
}
