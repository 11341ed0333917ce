package session

import (
	"fmt"
	"math"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"github.com/kilianp07/csim/core/logger"
	"github.com/kilianp07/csim/core/meter"
	"github.com/kilianp07/csim/core/model"
	"github.com/kilianp07/csim/core/smartcharging"
	"github.com/kilianp07/csim/core/station"
)

// Coordinator drives the connector state machine: remote start and stop,
// availability changes and the reservation lifecycle. All transitions are
// serialized through it; it is the only writer of connector status.
type Coordinator struct {
	station *station.Station
	meter   *meter.Synthesizer
	sink    Sink
	store   Store
	log     logger.Logger
	clock   model.Clock
}

// New builds a coordinator. A nil store disables persistence.
func New(st *station.Station, syn *meter.Synthesizer, sink Sink, store Store, log logger.Logger, clock model.Clock) *Coordinator {
	if store == nil {
		store = NopStore{}
	}
	return &Coordinator{station: st, meter: syn, sink: sink, store: store, log: log, clock: clock}
}

// notifyStatus records the transition on the ledger and pushes the status
// notification. Transport failures are logged, not propagated: the ledger is
// the canonical truth.
func (c *Coordinator) notifyStatus(connectorID int, status core.ChargePointStatus) {
	c.station.SetStatus(connectorID, status)
	if err := c.sink.StatusNotification(connectorID, status); err != nil {
		c.log.Errorf("connector %d: status notification %s: %v", connectorID, status, err)
	}
}

func (c *Coordinator) persist(connectorID int) {
	conn := c.station.Connector(connectorID)
	if conn == nil {
		return
	}
	if err := c.store.SaveConnectorState(c.station.Info.ID, connectorID, conn); err != nil {
		c.log.Warnf("connector %d: persist state: %v", connectorID, err)
	}
}

// RemoteStart services RemoteStartTransaction. With connectorID 0 the first
// available connector is picked.
func (c *Coordinator) RemoteStart(connectorID int, idTag string, profile *types.ChargingProfile) types.RemoteStartStopStatus {
	if connectorID == 0 {
		connectorID = c.pickAvailableConnector(idTag)
	}
	conn := c.station.Connector(connectorID)
	if connectorID < 1 || conn == nil {
		return types.RemoteStartStopStatusRejected
	}
	c.evictExpiredReservation(connectorID)
	if conn.Availability == core.AvailabilityTypeInoperative || conn.TransactionStarted {
		return types.RemoteStartStopStatusRejected
	}
	switch conn.Status {
	case core.ChargePointStatusAvailable, core.ChargePointStatusPreparing:
	case core.ChargePointStatusReserved:
		if !c.HasReservation(connectorID, idTag) {
			return types.RemoteStartStopStatusRejected
		}
	default:
		return types.RemoteStartStopStatusRejected
	}
	if profile != nil {
		if profile.ChargingProfilePurpose != types.ChargingProfilePurposeTxProfile {
			return types.RemoteStartStopStatusRejected
		}
		smartcharging.SetChargingProfile(conn, *profile)
	}
	c.notifyStatus(connectorID, core.ChargePointStatusPreparing)
	if c.station.Info.AuthorizeRemoteTxRequests {
		tag, err := c.sink.Authorize(idTag)
		if err != nil || tag == nil || tag.Status != types.AuthorizationStatusAccepted {
			c.notifyStatus(connectorID, core.ChargePointStatusAvailable)
			return types.RemoteStartStopStatusRejected
		}
	}
	if !c.startTransaction(connectorID, idTag) {
		return types.RemoteStartStopStatusRejected
	}
	return types.RemoteStartStopStatusAccepted
}

// pickAvailableConnector returns the first connector a session can start on.
func (c *Coordinator) pickAvailableConnector(idTag string) int {
	for id := 1; id <= c.station.ConnectorCount(); id++ {
		c.evictExpiredReservation(id)
		conn := c.station.Connector(id)
		if conn.TransactionStarted || conn.Availability == core.AvailabilityTypeInoperative {
			continue
		}
		if conn.Status == core.ChargePointStatusAvailable {
			return id
		}
		if conn.Status == core.ChargePointStatusReserved && c.HasReservation(id, idTag) {
			return id
		}
	}
	return -1
}

func (c *Coordinator) startTransaction(connectorID int, idTag string) bool {
	conn := c.station.Connector(connectorID)
	meterBegin := conn.EnergyActiveImportRegister
	begin := c.meter.BuildTransactionBeginMeterValue(connectorID, meterBegin)
	transactionID, tagInfo, err := c.sink.StartTransaction(connectorID, idTag, int(math.Round(meterBegin)))
	if err != nil || tagInfo == nil || tagInfo.Status != types.AuthorizationStatusAccepted {
		if err != nil {
			c.log.Errorf("connector %d: start transaction: %v", connectorID, err)
		}
		c.notifyStatus(connectorID, core.ChargePointStatusAvailable)
		return false
	}
	c.station.BeginTransaction(connectorID, transactionID, idTag, &begin)
	if conn.Reservation != nil && conn.Reservation.IdTag == idTag {
		conn.Reservation = nil
	}
	c.notifyStatus(connectorID, core.ChargePointStatusCharging)
	c.persist(connectorID)
	return true
}

// RemoteStop services RemoteStopTransaction: Finishing, status notification,
// StopTransaction with reason Remote. Accepted iff the returned idTagInfo is.
func (c *Coordinator) RemoteStop(transactionID int) types.RemoteStartStopStatus {
	connectorID := c.station.ConnectorIDByTransaction(transactionID)
	if connectorID < 1 {
		return types.RemoteStartStopStatusRejected
	}
	c.notifyStatus(connectorID, core.ChargePointStatusFinishing)
	tagInfo, err := c.StopTransactionOnConnector(connectorID, core.ReasonRemote)
	if err != nil {
		c.log.Errorf("connector %d: remote stop: %v", connectorID, err)
		return types.RemoteStartStopStatusRejected
	}
	if tagInfo != nil && tagInfo.Status == types.AuthorizationStatusAccepted {
		return types.RemoteStartStopStatusAccepted
	}
	return types.RemoteStartStopStatusRejected
}

// StopTransactionOnConnector ends the live transaction, replaying the begin
// and end meter values as transaction data. It errors when no transaction is
// live on the connector.
func (c *Coordinator) StopTransactionOnConnector(connectorID int, reason core.Reason) (*types.IdTagInfo, error) {
	conn := c.station.Connector(connectorID)
	if conn == nil || !conn.TransactionStarted {
		return nil, fmt.Errorf("connector %d has no live transaction", connectorID)
	}
	meterStop := conn.EnergyActiveImportRegister
	end := c.meter.BuildTransactionEndMeterValue(connectorID, meterStop)
	var transactionData []types.MeterValue
	if conn.TransactionBeginMeterValue != nil {
		transactionData = meter.BuildTransactionDataMeterValues(*conn.TransactionBeginMeterValue, end)
	}
	tagInfo, err := c.sink.StopTransaction(conn.TransactionID, int(math.Round(meterStop)), reason, transactionData)
	c.station.EndTransaction(connectorID)
	c.notifyStatus(connectorID, core.ChargePointStatusAvailable)
	c.applyScheduledAvailability(connectorID)
	c.persist(connectorID)
	return tagInfo, err
}

// ChangeAvailability applies the target availability to each connector.
// Connectors with a live transaction are marked Scheduled and transition at
// transaction end; availability itself is set unconditionally.
func (c *Coordinator) ChangeAvailability(connectorIDs []int, target core.AvailabilityType) core.AvailabilityStatus {
	aggregate := core.AvailabilityStatusAccepted
	for _, id := range connectorIDs {
		conn := c.station.Connector(id)
		if conn == nil {
			continue
		}
		c.evictExpiredReservation(id)
		conn.Availability = target
		if conn.TransactionStarted {
			t := target
			conn.ScheduledAvailability = &t
			aggregate = core.AvailabilityStatusScheduled
			continue
		}
		conn.ScheduledAvailability = nil
		status := core.ChargePointStatusAvailable
		if target == core.AvailabilityTypeInoperative {
			status = core.ChargePointStatusUnavailable
		}
		c.notifyStatus(id, status)
		c.persist(id)
	}
	return aggregate
}

// applyScheduledAvailability performs an availability change deferred by a
// transaction that has now ended.
func (c *Coordinator) applyScheduledAvailability(connectorID int) {
	conn := c.station.Connector(connectorID)
	if conn == nil || conn.ScheduledAvailability == nil {
		return
	}
	target := *conn.ScheduledAvailability
	conn.ScheduledAvailability = nil
	conn.Availability = target
	if target == core.AvailabilityTypeInoperative {
		c.notifyStatus(connectorID, core.ChargePointStatusUnavailable)
	}
}

// UnlockConnector stops any live transaction and unlocks. It reports false
// for the station connector and unknown ids.
func (c *Coordinator) UnlockConnector(connectorID int) bool {
	conn := c.station.Connector(connectorID)
	if connectorID < 1 || conn == nil {
		return false
	}
	if conn.TransactionStarted {
		if _, err := c.StopTransactionOnConnector(connectorID, core.ReasonUnlockCommand); err != nil {
			c.log.Errorf("connector %d: unlock: %v", connectorID, err)
			return false
		}
		return true
	}
	c.notifyStatus(connectorID, core.ChargePointStatusAvailable)
	return true
}
