package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/csim/core/metrics"
)

// PromSink records simulator events in Prometheus metrics.
type PromSink struct {
	samples      *prometheus.CounterVec
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	transactions *prometheus.GaugeVec
}

// NewPromSink registers simulator metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	samples := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meter_samples_total",
		Help: "Total number of synthesized meter samples",
	}, []string{"station_id", "measurand"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_requests_total",
		Help: "Total number of outbound OCPP requests",
	}, []string{"station_id", "action", "failed"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ocpp_request_duration_seconds",
		Help:    "Time between request send and confirmation",
		Buckets: prometheus.DefBuckets,
	}, []string{"station_id", "action"})
	transactions := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "active_transactions",
		Help: "Number of live transactions per station",
	}, []string{"station_id"})

	if err := reg.Register(samples); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			samples = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(requests); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			requests = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(transactions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			transactions = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{samples: samples, requests: requests, latency: latency, transactions: transactions}, nil
}

// RecordMeterSamples increments the sample counter per measurand.
func (s *PromSink) RecordMeterSamples(samples []coremetrics.MeterSample) error {
	for _, m := range samples {
		s.samples.WithLabelValues(m.StationID, m.Measurand).Inc()
	}
	return nil
}

// RecordRequest counts the request and observes its latency.
func (s *PromSink) RecordRequest(ev coremetrics.RequestEvent) error {
	s.requests.WithLabelValues(ev.StationID, ev.Action, strconv.FormatBool(ev.Failed)).Inc()
	s.latency.WithLabelValues(ev.StationID, ev.Action).Observe(ev.Duration.Seconds())
	return nil
}

// RecordTransaction moves the active-transaction gauge.
func (s *PromSink) RecordTransaction(ev coremetrics.TransactionEvent) error {
	if ev.Started {
		s.transactions.WithLabelValues(ev.StationID).Inc()
	} else {
		s.transactions.WithLabelValues(ev.StationID).Dec()
	}
	return nil
}
