package station

import (
	"strconv"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"github.com/kilianp07/csim/core/logger"
	"github.com/kilianp07/csim/core/model"
)

// Station owns the connector arena and is the canonical truth read by the
// synthesizer, the smart-charging manager and the session coordinator.
// Connectors are index-based: 0 is the station itself, 1..N are physical.
type Station struct {
	Info model.StationInfo

	connectors []*model.Connector
	templates  [][]model.SampledValueTemplate
	config     *Configuration

	log   logger.Logger
	clock model.Clock
}

// New builds a station with count physical connectors plus connector 0.
// Template lists are resolved per connector: an exact index entry wins over
// the "default" entry.
func New(info model.StationInfo, tmpl *model.Template, count int, log logger.Logger, clock model.Clock) *Station {
	s := &Station{
		Info:       info,
		connectors: make([]*model.Connector, count+1),
		templates:  make([][]model.SampledValueTemplate, count+1),
		log:        log,
		clock:      clock,
	}
	for i := range s.connectors {
		s.connectors[i] = model.NewConnector()
		if tmpl == nil {
			continue
		}
		if ct, ok := tmpl.Connectors[strconv.Itoa(i)]; ok {
			s.templates[i] = ct.MeterValues
		} else if ct, ok := tmpl.Connectors["default"]; ok {
			s.templates[i] = ct.MeterValues
		}
	}
	if tmpl != nil {
		s.config = NewConfiguration(tmpl)
	} else {
		s.config = NewConfiguration(&model.Template{})
	}
	return s
}

// ConnectorCount returns the number of physical connectors.
func (s *Station) ConnectorCount() int { return len(s.connectors) - 1 }

// Connector returns the connector record, or nil for an unknown index.
// Callers pre-validate ids; mutators below are total on known connectors.
func (s *Station) Connector(id int) *model.Connector {
	if id < 0 || id >= len(s.connectors) {
		return nil
	}
	return s.connectors[id]
}

// Configuration returns the station's OCPP configuration-key store.
func (s *Station) Configuration() *Configuration { return s.config }

// SetStatus records a connector status transition.
func (s *Station) SetStatus(id int, status core.ChargePointStatus) {
	if c := s.Connector(id); c != nil {
		c.Status = status
	}
}

// BeginTransaction marks the connector as transacting and resets the
// transaction energy register.
func (s *Station) BeginTransaction(id, transactionID int, idTag string, begin *types.MeterValue) {
	c := s.Connector(id)
	if c == nil {
		return
	}
	c.TransactionStarted = true
	c.TransactionID = transactionID
	c.IdTag = idTag
	c.TransactionEnergyActiveImportRegister = 0
	c.TransactionBeginMeterValue = begin
}

// EndTransaction clears the transaction fields. The lifetime register keeps
// its value.
func (s *Station) EndTransaction(id int) {
	c := s.Connector(id)
	if c == nil {
		return
	}
	c.TransactionStarted = false
	c.TransactionID = 0
	c.IdTag = ""
	c.TransactionEnergyActiveImportRegister = 0
	c.TransactionBeginMeterValue = nil
}

// AddEnergy increments the lifetime register and, when both registers are
// non-negative, the transaction register by deltaWh.
func (s *Station) AddEnergy(id int, deltaWh float64) {
	c := s.Connector(id)
	if c == nil || deltaWh < 0 {
		return
	}
	if c.EnergyActiveImportRegister >= 0 && c.TransactionEnergyActiveImportRegister >= 0 {
		c.TransactionEnergyActiveImportRegister += deltaWh
	}
	c.EnergyActiveImportRegister += deltaWh
}

// ConnectorIDByTransaction returns the connector carrying the transaction, or
// -1 when no connector does.
func (s *Station) ConnectorIDByTransaction(transactionID int) int {
	for id := 1; id < len(s.connectors); id++ {
		c := s.connectors[id]
		if c.TransactionStarted && c.TransactionID == transactionID {
			return id
		}
	}
	return -1
}

// EnergyActiveImportRegisterByTransaction returns the transaction energy
// register in Wh of the connector carrying the transaction, or 0 when no
// connector carries it.
func (s *Station) EnergyActiveImportRegisterByTransaction(transactionID int) float64 {
	if id := s.ConnectorIDByTransaction(transactionID); id > 0 {
		return s.connectors[id].TransactionEnergyActiveImportRegister
	}
	return 0
}

// SetReservation installs a reservation on the connector.
func (s *Station) SetReservation(id int, r *model.Reservation) {
	if c := s.Connector(id); c != nil {
		c.Reservation = r
	}
}

// RemoveReservation clears the reservation, restoring Available when the
// connector was Reserved.
func (s *Station) RemoveReservation(id int) {
	c := s.Connector(id)
	if c == nil {
		return
	}
	c.Reservation = nil
	if c.Status == core.ChargePointStatusReserved {
		c.Status = core.ChargePointStatusAvailable
	}
}

// SampledValueTemplate resolves the most specific template for the measurand
// and phase: exact (measurand, phase) first, then the phase-less measurand
// entry. An empty measurand defaults to Energy.Active.Import.Register.
func (s *Station) SampledValueTemplate(connectorID int, measurand types.Measurand, phase types.Phase) *model.SampledValueTemplate {
	if measurand == "" {
		measurand = types.MeasurandEnergyActiveImportRegister
	}
	if connectorID < 0 || connectorID >= len(s.templates) {
		return nil
	}
	var fallback *model.SampledValueTemplate
	for i := range s.templates[connectorID] {
		t := &s.templates[connectorID][i]
		m := t.Measurand
		if m == "" {
			m = types.MeasurandEnergyActiveImportRegister
		}
		if m != measurand {
			continue
		}
		if t.Phase == phase {
			return t
		}
		if t.Phase == "" && fallback == nil {
			fallback = t
		}
	}
	return fallback
}
