package rootfile

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics for file access. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Reads            prometheus.Counter
	BytesRead        prometheus.Counter
	ReadaheadGrowths prometheus.Counter
	Decompressions   *prometheus.CounterVec
	ObjectsDecoded   *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	reads := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rootio_reads_total",
		Help: "Byte range reads issued to sources",
	})

	bytesRead := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rootio_bytes_read_total",
		Help: "Bytes returned by sources",
	})

	growths := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rootio_readahead_growths_total",
		Help: "Additional reads needed because the open readahead was too small",
	})

	decompressions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rootio_decompressions_total",
		Help: "Object payloads decompressed, by the tag of the first block",
	}, []string{"codec"})

	decoded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rootio_objects_decoded_total",
		Help: "Objects decoded, by class",
	}, []string{"class"})

	reg.MustRegister(reads, bytesRead, growths, decompressions, decoded)

	return &Metrics{
		Reads:            reads,
		BytesRead:        bytesRead,
		ReadaheadGrowths: growths,
		Decompressions:   decompressions,
		ObjectsDecoded:   decoded,
	}
}

func (m *Metrics) read(n int) {
	if m == nil {
		return
	}
	m.Reads.Inc()
	m.BytesRead.Add(float64(n))
}

func (m *Metrics) growth() {
	if m == nil {
		return
	}
	m.ReadaheadGrowths.Inc()
}

func (m *Metrics) decompressed(codec string) {
	if m == nil {
		return
	}
	m.Decompressions.WithLabelValues(codec).Inc()
}

func (m *Metrics) decoded(class string) {
	if m == nil {
		return
	}
	m.ObjectsDecoded.WithLabelValues(class).Inc()
}
