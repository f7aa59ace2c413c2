package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "capmatrix"

// Recorder holds the metrics of one pipeline run in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration    *prometheus.GaugeVec
	packetsIndexed   prometheus.Counter
	packetsPassed    prometheus.Counter
	packetsSkipped   prometheus.Counter
	matrixSources    prometheus.Gauge
	matrixFlows      prometheus.Gauge
	deviceBytesInUse prometheus.Gauge
}

// NewRecorder creates and registers the pipeline metrics.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage.",
		}, []string{"stage"}),
		packetsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_indexed_total",
			Help:      "Packets found in the capture index.",
		}),
		packetsPassed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_passed_total",
			Help:      "Packets that passed the filter.",
		}),
		packetsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_skipped_total",
			Help:      "Passing packets too short to carry IPv4 endpoints.",
		}),
		matrixSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "matrix_sources",
			Help:      "Distinct sources in the traffic matrix.",
		}),
		matrixFlows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "matrix_flows",
			Help:      "Distinct source/destination pairs in the traffic matrix.",
		}),
		deviceBytesInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_bytes_in_use",
			Help:      "Accelerator result memory not yet released.",
		}),
	}

	r.registry.MustRegister(
		r.stageDuration,
		r.packetsIndexed,
		r.packetsPassed,
		r.packetsSkipped,
		r.matrixSources,
		r.matrixFlows,
		r.deviceBytesInUse,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Set(d.Seconds())
}

func (r *Recorder) AddIndexed(n int) {
	r.packetsIndexed.Add(float64(n))
}

func (r *Recorder) AddPassed(n uint64) {
	r.packetsPassed.Add(float64(n))
}

func (r *Recorder) AddSkipped(n uint64) {
	r.packetsSkipped.Add(float64(n))
}

func (r *Recorder) SetMatrix(sources, flows int) {
	r.matrixSources.Set(float64(sources))
	r.matrixFlows.Set(float64(flows))
}

func (r *Recorder) SetDeviceInUse(bytes int64) {
	r.deviceBytesInUse.Set(float64(bytes))
}

// WriteTextfile writes the metrics in the text exposition format, for the
// node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
