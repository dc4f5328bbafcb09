// Package metrics declares the prometheus collectors of the local data layer.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Keys for brainbox metrics.
const (
	StatementsTotalKey    = "brainbox_statements_total"
	ImageFlushesTotalKey  = "brainbox_image_flushes_total"
	ImageBytesKey         = "brainbox_image_bytes"
	AuthAttemptsTotalKey  = "brainbox_auth_attempts_total"
	MalformedColumnsTotal = "brainbox_malformed_columns_total"

	Fail = "fail"
	Ok   = "ok"
)

// Collectors for brainbox metrics.
var (
	StatementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: StatementsTotalKey,
		Help: "Cumulative number of compiled statements executed against the engine.",
	}, []string{"operation", "status"})
	ImageFlushesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ImageFlushesTotalKey,
		Help: "Cumulative number of full database image flushes to the durable store.",
	}, []string{"status"})
	ImageBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ImageBytesKey,
		Help: "Size of the most recently flushed database image.",
	})
	AuthAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: AuthAttemptsTotalKey,
		Help: "Cumulative number of auth operations.",
	}, []string{"operation", "status"})
	MalformedColumns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MalformedColumnsTotal,
		Help: "Cumulative number of serialized column values that failed to decode.",
	}, []string{"column"})
)

// Collectors returns all brainbox collectors, for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		StatementsTotal,
		ImageFlushesTotal,
		ImageBytes,
		AuthAttemptsTotal,
		MalformedColumns,
	}
}

// Register registers all collectors with reg, ignoring ones already present.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
