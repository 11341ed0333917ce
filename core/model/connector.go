package model

import (
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"
)

// Connector holds the runtime state of one connector. Index 0 designates the
// station itself and carries station-wide reservations and profiles.
type Connector struct {
	Status       core.ChargePointStatus
	Availability core.AvailabilityType

	TransactionStarted bool
	TransactionID      int
	IdTag              string

	// Lifetime energy register in Wh. Never decreases.
	EnergyActiveImportRegister float64
	// Energy register in Wh since the current transaction started.
	TransactionEnergyActiveImportRegister float64
	// Begin meter value captured at transaction start, replayed in the
	// StopTransaction transactionData.
	TransactionBeginMeterValue *types.MeterValue

	// Installed charging profiles in insertion order.
	ChargingProfiles []types.ChargingProfile

	Reservation *Reservation

	// Availability change deferred until the running transaction ends.
	ScheduledAvailability *core.AvailabilityType
}

// NewConnector returns an operative, available connector.
func NewConnector() *Connector {
	return &Connector{
		Status:       core.ChargePointStatusAvailable,
		Availability: core.AvailabilityTypeOperative,
	}
}

// Reservation binds an idTag to a connector until its expiry date.
type Reservation struct {
	ID          int
	ConnectorID int
	IdTag       string
	ParentIdTag string
	ExpiryDate  time.Time
}

// Expired reports whether the reservation has lapsed at the given instant.
func (r *Reservation) Expired(now time.Time) bool {
	return r != nil && !r.ExpiryDate.After(now)
}
