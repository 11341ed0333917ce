package meter

import (
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"
)

// BuildTransactionBeginMeterValue produces the single energy sample tagged
// Transaction.Begin. meterBeginWh is the lifetime register at start.
func (s *Synthesizer) BuildTransactionBeginMeterValue(connectorID int, meterBeginWh float64) types.MeterValue {
	return s.transactionBoundary(connectorID, meterBeginWh, types.ReadingContextTransactionBegin)
}

// BuildTransactionEndMeterValue produces the single energy sample tagged
// Transaction.End. meterEndWh is the lifetime register at stop.
func (s *Synthesizer) BuildTransactionEndMeterValue(connectorID int, meterEndWh float64) types.MeterValue {
	return s.transactionBoundary(connectorID, meterEndWh, types.ReadingContextTransactionEnd)
}

// BuildTransactionDataMeterValues assembles the StopTransaction payload data.
func BuildTransactionDataMeterValues(begin, end types.MeterValue) []types.MeterValue {
	return []types.MeterValue{begin, end}
}

func (s *Synthesizer) transactionBoundary(connectorID int, registerWh float64, context types.ReadingContext) types.MeterValue {
	t := s.station.SampledValueTemplate(connectorID, "", "")
	unitDivider := 1.0
	if t != nil && t.Unit == types.UnitOfMeasureKWh {
		unitDivider = 1000
	}
	sv := sample(t, FormatValue(RoundTo(registerWh/unitDivider, 4)), "", "")
	sv.Context = context
	return types.MeterValue{
		Timestamp:    types.NewDateTime(s.clock.Now()),
		SampledValue: []types.SampledValue{sv},
	}
}
