package ocpp

import (
	"time"

	ocpp16 "github.com/lorenzodonini/ocpp-go/ocpp1.6"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/firmware"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"github.com/kilianp07/csim/core/logger"
	coremetrics "github.com/kilianp07/csim/core/metrics"
	"github.com/kilianp07/csim/core/model"
)

// ChargePointClient pushes the station's outbound requests through an
// ocpp-go charge point and records them on the metrics sink. It implements
// session.Sink.
type ChargePointClient struct {
	cp        ocpp16.ChargePoint
	stationID string
	sink      coremetrics.MetricsSink
	log       logger.Logger
	clock     model.Clock
}

// NewChargePointClient wraps an ocpp-go charge point.
func NewChargePointClient(stationID string, cp ocpp16.ChargePoint, sink coremetrics.MetricsSink, log logger.Logger, clock model.Clock) *ChargePointClient {
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &ChargePointClient{cp: cp, stationID: stationID, sink: sink, log: log, clock: clock}
}

// Start connects to the central system. The url carries the ws/wss scheme;
// the charge point id is appended by the library.
func (c *ChargePointClient) Start(url string) error { return c.cp.Start(url) }

// Stop closes the connection, cancelling pending handlers.
func (c *ChargePointClient) Stop() { c.cp.Stop() }

// IsConnected reports transport liveness.
func (c *ChargePointClient) IsConnected() bool { return c.cp.IsConnected() }

// Errors exposes the library's asynchronous transport errors.
func (c *ChargePointClient) Errors() <-chan error { return c.cp.Errors() }

func (c *ChargePointClient) record(action string, started time.Time, err error) {
	if rec, ok := c.sink.(coremetrics.RequestRecorder); ok {
		_ = rec.RecordRequest(coremetrics.RequestEvent{
			StationID: c.stationID,
			Action:    action,
			Failed:    err != nil,
			Duration:  time.Since(started),
			Time:      c.clock.Now(),
		})
	}
}

// BootNotification announces the station to the central system.
func (c *ChargePointClient) BootNotification(chargePointModel, chargePointVendor string) (*core.BootNotificationConfirmation, error) {
	started := time.Now()
	conf, err := c.cp.BootNotification(chargePointModel, chargePointVendor)
	c.record(core.BootNotificationFeatureName, started, err)
	return conf, err
}

// Heartbeat sends one heartbeat.
func (c *ChargePointClient) Heartbeat() error {
	started := time.Now()
	_, err := c.cp.Heartbeat()
	c.record(core.HeartbeatFeatureName, started, err)
	return err
}

// StatusNotification pushes one connector status transition.
func (c *ChargePointClient) StatusNotification(connectorID int, status core.ChargePointStatus) error {
	started := time.Now()
	_, err := c.cp.StatusNotification(connectorID, core.NoError, status)
	c.record(core.StatusNotificationFeatureName, started, err)
	return err
}

// Authorize checks an idTag with the central system.
func (c *ChargePointClient) Authorize(idTag string) (*types.IdTagInfo, error) {
	started := time.Now()
	conf, err := c.cp.Authorize(idTag)
	c.record(core.AuthorizeFeatureName, started, err)
	if err != nil {
		return nil, err
	}
	return conf.IdTagInfo, nil
}

// StartTransaction opens a transaction and returns its id.
func (c *ChargePointClient) StartTransaction(connectorID int, idTag string, meterStart int) (int, *types.IdTagInfo, error) {
	started := time.Now()
	conf, err := c.cp.StartTransaction(connectorID, idTag, meterStart, types.NewDateTime(c.clock.Now()))
	c.record(core.StartTransactionFeatureName, started, err)
	if err != nil {
		return 0, nil, err
	}
	if rec, ok := c.sink.(coremetrics.TransactionRecorder); ok {
		_ = rec.RecordTransaction(coremetrics.TransactionEvent{
			StationID: c.stationID, ConnectorID: connectorID,
			TransactionID: conf.TransactionId, Started: true,
			MeterWh: float64(meterStart), Time: c.clock.Now(),
		})
	}
	return conf.TransactionId, conf.IdTagInfo, nil
}

// StopTransaction closes a transaction, replaying the transaction data.
func (c *ChargePointClient) StopTransaction(transactionID, meterStop int, reason core.Reason, transactionData []types.MeterValue) (*types.IdTagInfo, error) {
	started := time.Now()
	conf, err := c.cp.StopTransaction(meterStop, types.NewDateTime(c.clock.Now()), transactionID, func(request *core.StopTransactionRequest) {
		request.Reason = reason
		request.TransactionData = transactionData
	})
	c.record(core.StopTransactionFeatureName, started, err)
	if err != nil {
		return nil, err
	}
	if rec, ok := c.sink.(coremetrics.TransactionRecorder); ok {
		_ = rec.RecordTransaction(coremetrics.TransactionEvent{
			StationID: c.stationID, TransactionID: transactionID,
			Started: false, MeterWh: float64(meterStop), Time: c.clock.Now(),
		})
	}
	return conf.IdTagInfo, nil
}

// MeterValues emits one MeterValues request, bound to the transaction when
// one is live.
func (c *ChargePointClient) MeterValues(connectorID, transactionID int, values []types.MeterValue) error {
	started := time.Now()
	_, err := c.cp.MeterValues(connectorID, values, func(request *core.MeterValuesRequest) {
		if transactionID != 0 {
			id := transactionID
			request.TransactionId = &id
		}
	})
	c.record(core.MeterValuesFeatureName, started, err)
	return err
}

// DiagnosticsStatusNotification reports the diagnostics upload state.
func (c *ChargePointClient) DiagnosticsStatusNotification(status firmware.DiagnosticsStatus) error {
	started := time.Now()
	_, err := c.cp.DiagnosticsStatusNotification(status)
	c.record(firmware.DiagnosticsStatusNotificationFeatureName, started, err)
	return err
}

// FirmwareStatusNotification reports the firmware install state.
func (c *ChargePointClient) FirmwareStatusNotification(status firmware.FirmwareStatus) error {
	started := time.Now()
	_, err := c.cp.FirmwareStatusNotification(status)
	c.record(firmware.FirmwareStatusNotificationFeatureName, started, err)
	return err
}
