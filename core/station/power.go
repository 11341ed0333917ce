package station

import (
	"fmt"

	"github.com/kilianp07/csim/core/model"
)

// ConnectorMaximumAvailablePower returns the watts available to one connector
// after apportioning the station budget through the power divider. A missing
// or non-positive divider is a fatal internal error for the caller.
func (s *Station) ConnectorMaximumAvailablePower() (float64, error) {
	if s.Info.PowerDivider <= 0 {
		return 0, fmt.Errorf("power divider %d must be positive", s.Info.PowerDivider)
	}
	return s.Info.MaximumPower / float64(s.Info.PowerDivider), nil
}

// ACAmperagePerPhase converts a power bound into the per-phase amperage bound
// for an AC supply.
func ACAmperagePerPhase(phases int, maxPower, voltage float64) float64 {
	if phases <= 0 || voltage <= 0 {
		return 0
	}
	return maxPower / voltage / float64(phases)
}

// DCAmperage converts a power bound into the amperage bound for a DC supply.
func DCAmperage(maxPower, voltage float64) float64 {
	if voltage <= 0 {
		return 0
	}
	return maxPower / voltage
}

// MaximumAmperage returns the per-phase (AC) or total (DC) amperage bound of
// one connector.
func (s *Station) MaximumAmperage() (float64, error) {
	maxPower, err := s.ConnectorMaximumAvailablePower()
	if err != nil {
		return 0, err
	}
	switch s.Info.CurrentOutType {
	case model.CurrentAC:
		return ACAmperagePerPhase(s.Info.NumberOfPhases, maxPower, s.Info.VoltageOut), nil
	case model.CurrentDC:
		return DCAmperage(maxPower, s.Info.VoltageOut), nil
	default:
		return 0, fmt.Errorf("unknown currentOutType %s", s.Info.CurrentOutType)
	}
}
