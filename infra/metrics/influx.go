package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/csim/core/metrics"
	"github.com/kilianp07/csim/infra/logger"
)

// InfluxSink writes simulator events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordMeterSamples writes synthesized samples as line-protocol points.
func (s *InfluxSink) RecordMeterSamples(samples []coremetrics.MeterSample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, m := range samples {
		p := write.NewPointWithMeasurement("meter_sample").
			AddTag("station_id", m.StationID).
			AddTag("connector_id", strconv.Itoa(m.ConnectorID)).
			AddTag("measurand", m.Measurand).
			AddTag("unit", m.Unit)
		if m.Phase != "" {
			p.AddTag("phase", m.Phase)
		}
		p = p.AddField("value", round3(m.Value)).SetTime(m.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransaction persists a transaction lifecycle event.
func (s *InfluxSink) RecordTransaction(ev coremetrics.TransactionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("transaction_event").
		AddTag("station_id", ev.StationID).
		AddTag("connector_id", strconv.Itoa(ev.ConnectorID)).
		AddTag("started", strconv.FormatBool(ev.Started)).
		AddField("transaction_id", ev.TransactionID).
		AddField("meter_wh", round3(ev.MeterWh)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStatus writes a connector status transition.
func (s *InfluxSink) RecordStatus(ev coremetrics.StatusEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("connector_status").
		AddTag("station_id", ev.StationID).
		AddTag("connector_id", strconv.Itoa(ev.ConnectorID)).
		AddField("status", ev.Status).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
