// Package metrics counts how presented files are read, exported for Prometheus.
package metrics

import (
	"errors"
	"io"

	"git.ruekov.eu/ruakij/partStreamer/pkg/resource"
	"git.ruekov.eu/ruakij/partStreamer/pkg/resource/hookedresource"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "partstreamer"

type Metrics struct {
	opens       *prometheus.CounterVec
	openErrors  *prometheus.CounterVec
	readBytes   *prometheus.CounterVec
	readErrors  *prometheus.CounterVec
	seeks       *prometheus.CounterVec
	openReaders *prometheus.GaugeVec
	artifacts   prometheus.Gauge
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		opens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opens_total",
			Help:      "Readers opened per file.",
		}, []string{"file"}),
		openErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "open_errors_total",
			Help:      "Failed attempts to open a file.",
		}, []string{"file"}),
		readBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_bytes_total",
			Help:      "Bytes read per file.",
		}, []string{"file"}),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_errors_total",
			Help:      "Reads failing with an error other than end of file.",
		}, []string{"file"}),
		seeks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seeks_total",
			Help:      "Seeks per file.",
		}, []string{"file"}),
		openReaders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_readers",
			Help:      "Readers currently open per file.",
		}, []string{"file"}),
		artifacts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifacts",
			Help:      "Artifacts currently presented.",
		}),
	}

	reg.MustRegister(m.opens, m.openErrors, m.readBytes, m.readErrors, m.seeks, m.openReaders, m.artifacts)
	return m
}

// Instrument wraps res, counting its operations under the label file.
func (m *Metrics) Instrument(file string, res resource.ReadSeekCloseableResource) *hookedresource.HookedResource {
	opens := m.opens.WithLabelValues(file)
	openErrors := m.openErrors.WithLabelValues(file)
	readBytes := m.readBytes.WithLabelValues(file)
	readErrors := m.readErrors.WithLabelValues(file)
	seeks := m.seeks.WithLabelValues(file)
	openReaders := m.openReaders.WithLabelValues(file)

	return hookedresource.NewHookedResource(res, hookedresource.Hooks{
		Open: []hookedresource.OpenHook{func(next func() (io.ReadSeekCloser, error)) (io.ReadSeekCloser, error) {
			reader, err := next()
			if err != nil {
				openErrors.Inc()
				return nil, err
			}
			opens.Inc()
			openReaders.Inc()
			return reader, nil
		}},
		Read: []hookedresource.ReadHook{func(p []byte, next func([]byte) (int, error)) (int, error) {
			n, err := next(p)
			readBytes.Add(float64(n))
			if err != nil && !errors.Is(err, io.EOF) {
				readErrors.Inc()
			}
			return n, err
		}},
		Seek: []hookedresource.SeekHook{func(offset int64, whence int, next func(int64, int) (int64, error)) (int64, error) {
			seeks.Inc()
			return next(offset, whence)
		}},
		Close: []hookedresource.CloseHook{func(next func() error) error {
			openReaders.Dec()
			return next()
		}},
	})
}

// Forget drops the series of file.
func (m *Metrics) Forget(file string) {
	m.opens.DeleteLabelValues(file)
	m.openErrors.DeleteLabelValues(file)
	m.readBytes.DeleteLabelValues(file)
	m.readErrors.DeleteLabelValues(file)
	m.seeks.DeleteLabelValues(file)
	m.openReaders.DeleteLabelValues(file)
}

func (m *Metrics) SetArtifacts(count int) {
	m.artifacts.Set(float64(count))
}
