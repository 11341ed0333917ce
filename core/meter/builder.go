package meter

import (
	"fmt"
	"math"
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"github.com/kilianp07/csim/core/logger"
	"github.com/kilianp07/csim/core/model"
	"github.com/kilianp07/csim/core/station"
)

// Synthesizer turns station configuration and template data into protocol
// accurate MeterValue records. It reads the connector ledger through the
// station and mutates only the energy registers.
type Synthesizer struct {
	station *station.Station
	log     logger.Logger
	clock   model.Clock
	rng     model.Rand
}

// New builds a synthesizer over the station.
func New(st *station.Station, log logger.Logger, clock model.Clock, rng model.Rand) *Synthesizer {
	return &Synthesizer{station: st, log: log, clock: clock, rng: rng}
}

// BuildMeterValue produces one MeterValue for the connector over the given
// sampling interval. Measurands are emitted in a fixed order — SoC, voltage,
// power, current, energy — and a measurand is omitted iff no template
// resolves for it. With debug set, the synthesized values are logged: per
// phase for voltage, as aggregates for power and current.
func (s *Synthesizer) BuildMeterValue(connectorID, transactionID int, interval time.Duration, debug bool) (types.MeterValue, error) {
	mv := types.MeterValue{Timestamp: types.NewDateTime(s.clock.Now())}

	s.appendSoC(&mv, connectorID, debug)
	s.appendVoltage(&mv, connectorID, debug)
	if err := s.appendPower(&mv, connectorID, debug); err != nil {
		return mv, err
	}
	if err := s.appendCurrent(&mv, connectorID, debug); err != nil {
		return mv, err
	}
	if err := s.appendEnergy(&mv, connectorID, transactionID, interval, debug); err != nil {
		return mv, err
	}
	return mv, nil
}

// sample renders one SampledValue from a template. A non-empty phase
// overrides the template's phase; a non-empty location applies only when the
// template sets none.
func sample(t *model.SampledValueTemplate, value string, phase types.Phase, location types.Location) types.SampledValue {
	sv := types.SampledValue{Value: value}
	if t != nil {
		sv.Measurand = t.Measurand
		sv.Unit = t.Unit
		sv.Context = t.Context
		sv.Phase = t.Phase
		sv.Location = t.Location
	}
	if phase != "" {
		sv.Phase = phase
	}
	if location != "" && sv.Location == "" {
		sv.Location = location
	}
	return sv
}

// templateValue produces a value from the template: a literal is clamped and
// fluctuated, otherwise a uniform draw from [min, max] rounded to 2 decimals.
func (s *Synthesizer) templateValue(t *model.SampledValueTemplate, min, max float64, opts clampOptions) float64 {
	if t.Value != "" {
		raw := parseTemplateValue(t.Value, s.log)
		v := clampCustomValue(raw, max, min, opts, s.log)
		pct := t.FluctuationPercent
		if pct == 0 {
			pct = DefaultFluctuationPercent
		}
		return fluctuated(s.rng, v, pct)
	}
	return randomFloatRounded(s.rng, min, max)
}

func (s *Synthesizer) appendSoC(mv *types.MeterValue, connectorID int, debug bool) {
	t := s.station.SampledValueTemplate(connectorID, types.MeasurandSoC, "")
	if t == nil {
		return
	}
	min := t.MinimumValue
	if min < 0 {
		min = 0
	}
	v := s.templateValue(t, min, 100, clampOptions{
		limitationEnabled: s.station.Info.CustomValueLimitationMeterValues,
		fallback:          min,
	})
	if v < 0 || v > 100 {
		s.log.Errorf("connector %d: SoC %v outside [0, 100]", connectorID, v)
	}
	if debug {
		s.log.Debugw("sampled SoC", map[string]any{"connector": connectorID, "value": v})
	}
	mv.SampledValue = append(mv.SampledValue, sample(t, FormatValue(v), "", types.LocationEV))
}

func (s *Synthesizer) appendVoltage(mv *types.MeterValue, connectorID int, debug bool) {
	t := s.station.SampledValueTemplate(connectorID, types.MeasurandVoltage, "")
	if t == nil {
		return
	}
	info := s.station.Info
	nominal := info.VoltageOut

	voltageSample := func(tpl *model.SampledValueTemplate, base float64, phase types.Phase) types.SampledValue {
		v := base
		if tpl.Value != "" {
			v = parseTemplateValue(tpl.Value, s.log)
		}
		pct := tpl.FluctuationPercent
		if pct == 0 {
			pct = DefaultFluctuationPercent
		}
		out := fluctuated(s.rng, v, pct)
		if debug {
			s.log.Debugw("sampled voltage", map[string]any{"connector": connectorID, "phase": string(phase), "value": out})
		}
		return sample(tpl, FormatValue(out), phase, "")
	}

	if info.NumberOfPhases == 1 || info.MainVoltageMeterValues {
		mv.SampledValue = append(mv.SampledValue, voltageSample(t, nominal, ""))
	}
	if info.NumberOfPhases != 3 {
		return
	}
	for _, phase := range []types.Phase{types.PhaseL1N, types.PhaseL2N, types.PhaseL3N} {
		tpl := s.station.SampledValueTemplate(connectorID, types.MeasurandVoltage, phase)
		if tpl == nil {
			tpl = t
		}
		mv.SampledValue = append(mv.SampledValue, voltageSample(tpl, nominal, phase))
	}
	if !info.PhaseLineToLineVoltageMeterValues {
		return
	}
	lineToLine := RoundTo(math.Sqrt(3)*nominal, 2)
	for _, phase := range []types.Phase{types.PhaseL1L2, types.PhaseL2L3, types.PhaseL3L1} {
		tpl := s.station.SampledValueTemplate(connectorID, types.MeasurandVoltage, phase)
		if tpl == nil {
			tpl = t
		}
		mv.SampledValue = append(mv.SampledValue, voltageSample(tpl, lineToLine, phase))
	}
}

func (s *Synthesizer) appendPower(mv *types.MeterValue, connectorID int, debug bool) error {
	t := s.station.SampledValueTemplate(connectorID, types.MeasurandPowerActiveImport, "")
	if t == nil {
		return nil
	}
	info := s.station.Info
	maxPower, err := s.station.ConnectorMaximumAvailablePower()
	if err != nil {
		return err
	}
	connectorMaxPower := math.Round(maxPower)
	unitDivider := 1.0
	if t.Unit == types.UnitOfMeasureKW {
		unitDivider = 1000
	}
	bound := connectorMaxPower / unitDivider
	opts := clampOptions{
		limitationEnabled: info.CustomValueLimitationMeterValues,
		fallback:          0,
	}

	var aggregate float64
	var phases []types.SampledValue
	switch info.CurrentOutType {
	case model.CurrentAC:
		if info.NumberOfPhases == 3 {
			perPhaseBound := bound / 3
			var sum float64
			for _, phase := range []types.Phase{types.PhaseL1N, types.PhaseL2N, types.PhaseL3N} {
				tpl := s.station.SampledValueTemplate(connectorID, types.MeasurandPowerActiveImport, phase)
				if tpl == nil {
					tpl = t
				}
				v := s.templateValue(tpl, 0, perPhaseBound, opts)
				sum += v
				phases = append(phases, sample(tpl, FormatValue(v), phase, ""))
			}
			aggregate = RoundTo(sum, 2)
		} else {
			// Single phase: the aggregate is L1 with L2 = L3 = 0.
			aggregate = RoundTo(s.templateValue(t, 0, bound, opts), 2)
		}
	case model.CurrentDC:
		aggregate = RoundTo(s.templateValue(t, 0, bound, opts), 2)
	default:
		return fmt.Errorf("unknown currentOutType %s", info.CurrentOutType)
	}
	if debug {
		s.log.Debugw("sampled power", map[string]any{"connector": connectorID, "value": aggregate})
	}
	mv.SampledValue = append(mv.SampledValue, sample(t, FormatValue(aggregate), "", ""))
	mv.SampledValue = append(mv.SampledValue, phases...)
	return nil
}

func (s *Synthesizer) appendCurrent(mv *types.MeterValue, connectorID int, debug bool) error {
	t := s.station.SampledValueTemplate(connectorID, types.MeasurandCurrentImport, "")
	if t == nil {
		return nil
	}
	info := s.station.Info
	maxAmperage, err := s.station.MaximumAmperage()
	if err != nil {
		return err
	}
	opts := clampOptions{
		limitationEnabled: info.CustomValueLimitationMeterValues,
		fallback:          0,
	}

	var aggregate float64
	var phases []types.SampledValue
	if info.CurrentOutType == model.CurrentAC && info.NumberOfPhases == 3 {
		var sum float64
		for _, phase := range []types.Phase{types.PhaseL1, types.PhaseL2, types.PhaseL3} {
			tpl := s.station.SampledValueTemplate(connectorID, types.MeasurandCurrentImport, phase)
			if tpl == nil {
				tpl = t
			}
			v := s.templateValue(tpl, 0, maxAmperage, opts)
			sum += v
			phases = append(phases, sample(tpl, FormatValue(v), phase, ""))
		}
		// The aggregate is the per-phase average, not the sum.
		aggregate = RoundTo(sum/float64(info.NumberOfPhases), 2)
	} else {
		aggregate = RoundTo(s.templateValue(t, 0, maxAmperage, opts), 2)
	}
	if debug {
		s.log.Debugw("sampled current", map[string]any{"connector": connectorID, "value": aggregate})
	}
	mv.SampledValue = append(mv.SampledValue, sample(t, FormatValue(aggregate), "", ""))
	mv.SampledValue = append(mv.SampledValue, phases...)
	return nil
}

func (s *Synthesizer) appendEnergy(mv *types.MeterValue, connectorID, transactionID int, interval time.Duration, debug bool) error {
	t := s.station.SampledValueTemplate(connectorID, types.MeasurandEnergyActiveImportRegister, "")
	if t == nil {
		return nil
	}
	info := s.station.Info
	maxPower, err := s.station.ConnectorMaximumAvailablePower()
	if err != nil {
		return err
	}
	connectorMaxPower := math.Round(maxPower)
	unitDivider := 1.0
	if t.Unit == types.UnitOfMeasureKWh {
		unitDivider = 1000
	}
	maxEnergyWh := RoundTo(connectorMaxPower*float64(interval.Milliseconds())/3_600_000, 2)

	var energyWh float64
	if t.Value != "" {
		raw := parseTemplateValue(t.Value, s.log)
		energyWh = clampCustomValue(raw, maxEnergyWh, 0, clampOptions{
			limitationEnabled: info.CustomValueLimitationMeterValues,
			fallback:          0,
			unitMultiplier:    unitDivider,
		}, s.log)
	} else {
		energyWh = randomFloatRounded(s.rng, 0, maxEnergyWh)
	}
	s.station.AddEnergy(connectorID, energyWh)

	register := s.station.EnergyActiveImportRegisterByTransaction(transactionID)
	emitted := RoundTo(register/unitDivider, 2)
	if debug {
		s.log.Debugw("sampled energy", map[string]any{
			"connector": connectorID, "transaction": transactionID,
			"increment_wh": energyWh, "register": emitted,
		})
	}
	mv.SampledValue = append(mv.SampledValue, sample(t, FormatValue(emitted), "", ""))
	return nil
}
