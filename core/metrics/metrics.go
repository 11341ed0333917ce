package metrics

import (
	"time"
)

// MeterSample represents one synthesized sampled value to be recorded.
type MeterSample struct {
	StationID   string
	ConnectorID int
	Measurand   string
	Phase       string
	Unit        string
	Value       float64
	Time        time.Time
}

// MetricsSink records synthesized meter samples for observability purposes.
type MetricsSink interface {
	RecordMeterSamples(samples []MeterSample) error
}

// TransactionEvent captures a transaction starting or stopping.
type TransactionEvent struct {
	StationID     string
	ConnectorID   int
	TransactionID int
	Started       bool
	MeterWh       float64
	Time          time.Time
}

// TransactionRecorder records transaction lifecycle events.
type TransactionRecorder interface {
	RecordTransaction(ev TransactionEvent) error
}

// StatusEvent is a connector status transition.
type StatusEvent struct {
	StationID   string
	ConnectorID int
	Status      string
	Time        time.Time
}

// StatusRecorder records connector status transitions.
type StatusRecorder interface {
	RecordStatus(ev StatusEvent) error
}

// RequestEvent captures one outbound OCPP request.
type RequestEvent struct {
	StationID string
	Action    string
	Failed    bool
	Duration  time.Duration
	Time      time.Time
}

// RequestRecorder records outbound requests.
type RequestRecorder interface {
	RecordRequest(ev RequestEvent) error
}

// NopSink ignores all records.
type NopSink struct{}

func (NopSink) RecordMeterSamples([]MeterSample) error   { return nil }
func (NopSink) RecordTransaction(TransactionEvent) error { return nil }
func (NopSink) RecordStatus(StatusEvent) error           { return nil }
func (NopSink) RecordRequest(RequestEvent) error         { return nil }

// Config defines settings for metrics sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PrometheusPort == "" {
		c.PrometheusPort = "2112"
	}
}
