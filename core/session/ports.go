package session

import (
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"github.com/kilianp07/csim/core/model"
)

// Sink is the outbound transport the coordinator pushes protocol requests
// through. The production implementation wraps the ocpp-go charge point.
type Sink interface {
	StatusNotification(connectorID int, status core.ChargePointStatus) error
	Authorize(idTag string) (*types.IdTagInfo, error)
	StartTransaction(connectorID int, idTag string, meterStart int) (int, *types.IdTagInfo, error)
	StopTransaction(transactionID, meterStop int, reason core.Reason, transactionData []types.MeterValue) (*types.IdTagInfo, error)
}

// Store persists connector state between runs. Writes are best-effort from
// the coordinator's perspective.
type Store interface {
	SaveConnectorState(stationID string, connectorID int, c *model.Connector) error
}

// NopStore discards connector state.
type NopStore struct{}

func (NopStore) SaveConnectorState(string, int, *model.Connector) error { return nil }
