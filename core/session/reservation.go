package session

import (
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/reservation"

	"github.com/kilianp07/csim/core/model"
)

// HasReservation reports whether idTag holds a usable reservation on the
// connector, either directly or station-wide through connector 0. Expired
// reservations never match.
func (c *Coordinator) HasReservation(connectorID int, idTag string) bool {
	now := c.clock.Now()
	if conn := c.station.Connector(connectorID); conn != nil &&
		conn.Status == core.ChargePointStatusReserved &&
		conn.Reservation != nil && !conn.Reservation.Expired(now) &&
		conn.Reservation.IdTag == idTag {
		return true
	}
	if station := c.station.Connector(0); station != nil &&
		station.Reservation != nil && !station.Reservation.Expired(now) &&
		station.Reservation.IdTag == idTag {
		return true
	}
	return false
}

// ReserveNow installs a reservation. A reservation reusing an existing
// reservationId replaces it wherever it lives; a connector still holding a
// live reservation under another id answers Occupied.
func (c *Coordinator) ReserveNow(reservationID, connectorID int, idTag, parentIdTag string, expiry time.Time) reservation.ReservationStatus {
	conn := c.station.Connector(connectorID)
	if conn == nil {
		return reservation.ReservationStatusRejected
	}
	c.removeReservationByID(reservationID)
	c.evictExpiredReservation(connectorID)
	if conn.Availability == core.AvailabilityTypeInoperative {
		return reservation.ReservationStatusUnavailable
	}
	switch conn.Status {
	case core.ChargePointStatusAvailable, core.ChargePointStatusReserved:
	case core.ChargePointStatusFaulted:
		return reservation.ReservationStatusFaulted
	case core.ChargePointStatusUnavailable:
		return reservation.ReservationStatusUnavailable
	default:
		return reservation.ReservationStatusOccupied
	}
	if conn.Reservation != nil {
		return reservation.ReservationStatusOccupied
	}
	c.station.SetReservation(connectorID, &model.Reservation{
		ID:          reservationID,
		ConnectorID: connectorID,
		IdTag:       idTag,
		ParentIdTag: parentIdTag,
		ExpiryDate:  expiry,
	})
	if connectorID > 0 {
		c.notifyStatus(connectorID, core.ChargePointStatusReserved)
	}
	c.persist(connectorID)
	return reservation.ReservationStatusAccepted
}

// CancelReservation releases the reservation and reports whether it existed.
func (c *Coordinator) CancelReservation(reservationID int) bool {
	return c.removeReservationByID(reservationID)
}

func (c *Coordinator) removeReservationByID(reservationID int) bool {
	for id := 0; id <= c.station.ConnectorCount(); id++ {
		conn := c.station.Connector(id)
		if conn.Reservation == nil || conn.Reservation.ID != reservationID {
			continue
		}
		wasReserved := conn.Status == core.ChargePointStatusReserved
		c.station.RemoveReservation(id)
		if wasReserved {
			c.notifyStatus(id, core.ChargePointStatusAvailable)
		}
		c.persist(id)
		return true
	}
	return false
}

// evictExpiredReservation drops a lapsed reservation before a transition
// touches the connector.
func (c *Coordinator) evictExpiredReservation(connectorID int) {
	conn := c.station.Connector(connectorID)
	if conn == nil || conn.Reservation == nil || !conn.Reservation.Expired(c.clock.Now()) {
		return
	}
	wasReserved := conn.Status == core.ChargePointStatusReserved
	c.station.RemoveReservation(connectorID)
	if wasReserved {
		c.notifyStatus(connectorID, core.ChargePointStatusAvailable)
	}
}
