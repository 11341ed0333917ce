package app

import (
	"context"
	"strconv"
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/firmware"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"github.com/kilianp07/csim/core/logger"
	"github.com/kilianp07/csim/core/meter"
	coremetrics "github.com/kilianp07/csim/core/metrics"
	"github.com/kilianp07/csim/core/model"
	"github.com/kilianp07/csim/core/station"
	ocppinfra "github.com/kilianp07/csim/infra/ocpp"
	"github.com/kilianp07/csim/internal/eventbus"
)

// Runner owns one station task. Everything inside a station runs on this
// loop: handler-triggered sends are enqueued as closures, so meter-value
// emission never races a command for the same station.
type Runner struct {
	station     *station.Station
	client      *ocppinfra.ChargePointClient
	synthesizer *meter.Synthesizer
	sink        coremetrics.MetricsSink
	bus         eventbus.EventBus
	log         logger.Logger
	clock       model.Clock

	heartbeatInterval time.Duration
	meterInterval     time.Duration
	triggers          chan func()
}

// NewRunner builds the station loop.
func NewRunner(st *station.Station, client *ocppinfra.ChargePointClient, syn *meter.Synthesizer, sink coremetrics.MetricsSink, bus eventbus.EventBus, log logger.Logger, clock model.Clock, heartbeat, meterInterval time.Duration) *Runner {
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Runner{
		station:           st,
		client:            client,
		synthesizer:       syn,
		sink:              sink,
		bus:               bus,
		log:               log,
		clock:             clock,
		heartbeatInterval: heartbeat,
		meterInterval:     meterInterval,
		triggers:          make(chan func(), 16),
	}
}

// Run connects, boots and drives the station until the context is cancelled.
func (r *Runner) Run(ctx context.Context, supervisionURL string) error {
	if err := r.client.Start(supervisionURL); err != nil {
		return err
	}
	defer r.client.Stop()

	r.boot()
	eventbus.PublishLifecycle(r.bus, r.station.Info.ID, eventbus.LifecycleStarted, r.clock.Now())
	defer eventbus.PublishLifecycle(r.bus, r.station.Info.ID, eventbus.LifecycleStopped, r.clock.Now())

	heartbeat := time.NewTicker(r.heartbeatInterval)
	defer heartbeat.Stop()
	meterTick := time.NewTicker(r.meterInterval)
	defer meterTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if err := r.client.Heartbeat(); err != nil {
				r.log.Errorf("heartbeat: %v", err)
			}
		case <-meterTick.C:
			for id := 1; id <= r.station.ConnectorCount(); id++ {
				if c := r.station.Connector(id); c.TransactionStarted {
					r.emitMeterValues(id, c.TransactionID)
				}
			}
		case f := <-r.triggers:
			f()
		}
	}
}

func (r *Runner) boot() {
	conf, err := r.client.BootNotification(r.station.Info.ChargePointModel, r.station.Info.ChargePointVendor)
	if err != nil {
		r.log.Errorf("boot notification: %v", err)
	} else if conf != nil && conf.Interval > 0 {
		r.heartbeatInterval = time.Duration(conf.Interval) * time.Second
	}
	for id := 0; id <= r.station.ConnectorCount(); id++ {
		if err := r.client.StatusNotification(id, r.station.Connector(id).Status); err != nil {
			r.log.Errorf("connector %d: status notification: %v", id, err)
		}
	}
}

func (r *Runner) emitMeterValues(connectorID, transactionID int) {
	mv, err := r.synthesizer.BuildMeterValue(connectorID, transactionID, r.meterInterval, false)
	if err != nil {
		// Divider and current-type failures are logged and no MeterValues
		// request is sent.
		r.log.Errorf("connector %d: build meter value: %v", connectorID, err)
		return
	}
	if len(mv.SampledValue) == 0 {
		return
	}
	if err := r.client.MeterValues(connectorID, transactionID, []types.MeterValue{mv}); err != nil {
		r.log.Errorf("connector %d: meter values: %v", connectorID, err)
	}
	r.recordSamples(connectorID, mv)
	eventbus.PublishLifecycle(r.bus, r.station.Info.ID, eventbus.LifecycleUpdated, r.clock.Now())
}

func (r *Runner) recordSamples(connectorID int, mv types.MeterValue) {
	samples := make([]coremetrics.MeterSample, 0, len(mv.SampledValue))
	for _, sv := range mv.SampledValue {
		value, err := strconv.ParseFloat(sv.Value, 64)
		if err != nil {
			continue
		}
		samples = append(samples, coremetrics.MeterSample{
			StationID:   r.station.Info.ID,
			ConnectorID: connectorID,
			Measurand:   string(sv.Measurand),
			Phase:       string(sv.Phase),
			Unit:        string(sv.Unit),
			Value:       value,
			Time:        r.clock.Now(),
		})
	}
	if err := r.sink.RecordMeterSamples(samples); err != nil {
		r.log.Warnf("record meter samples: %v", err)
	}
}

// enqueue schedules a send on the station loop; a saturated queue drops the
// trigger rather than blocking the handler.
func (r *Runner) enqueue(f func()) {
	select {
	case r.triggers <- f:
	default:
		r.log.Warnf("trigger queue full, dropping request")
	}
}

// TriggerBootNotification re-announces the station.
func (r *Runner) TriggerBootNotification() {
	r.enqueue(func() { r.boot() })
}

// TriggerHeartbeat sends one heartbeat outside the regular cadence.
func (r *Runner) TriggerHeartbeat() {
	r.enqueue(func() {
		if err := r.client.Heartbeat(); err != nil {
			r.log.Errorf("triggered heartbeat: %v", err)
		}
	})
}

// TriggerStatusNotification re-sends the current status; connector 0 fans
// out to every connector.
func (r *Runner) TriggerStatusNotification(connectorID int) {
	r.enqueue(func() {
		ids := []int{connectorID}
		if connectorID == 0 {
			ids = ids[:0]
			for id := 0; id <= r.station.ConnectorCount(); id++ {
				ids = append(ids, id)
			}
		}
		for _, id := range ids {
			if c := r.station.Connector(id); c != nil {
				if err := r.client.StatusNotification(id, c.Status); err != nil {
					r.log.Errorf("connector %d: triggered status: %v", id, err)
				}
			}
		}
	})
}

// TriggerMeterValues emits one sample outside the regular cadence.
func (r *Runner) TriggerMeterValues(connectorID int) {
	r.enqueue(func() {
		ids := []int{connectorID}
		if connectorID == 0 {
			ids = ids[:0]
			for id := 1; id <= r.station.ConnectorCount(); id++ {
				ids = append(ids, id)
			}
		}
		for _, id := range ids {
			if c := r.station.Connector(id); c != nil {
				r.emitMeterValues(id, c.TransactionID)
			}
		}
	})
}

// TriggerDiagnosticsStatusNotification reports an idle diagnostics state.
func (r *Runner) TriggerDiagnosticsStatusNotification() {
	r.enqueue(func() {
		if err := r.client.DiagnosticsStatusNotification(firmware.DiagnosticsStatusIdle); err != nil {
			r.log.Errorf("diagnostics status: %v", err)
		}
	})
}

// TriggerFirmwareStatusNotification reports an idle firmware state.
func (r *Runner) TriggerFirmwareStatusNotification() {
	r.enqueue(func() {
		if err := r.client.FirmwareStatusNotification(firmware.FirmwareStatusIdle); err != nil {
			r.log.Errorf("firmware status: %v", err)
		}
	})
}
