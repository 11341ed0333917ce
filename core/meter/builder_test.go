package meter

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"github.com/kilianp07/csim/core/model"
	"github.com/kilianp07/csim/core/station"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

type stubClock struct{ t time.Time }

func (c stubClock) Now() time.Time { return c.t }

// stubRand always returns the same fraction.
type stubRand struct{ v float64 }

func (r stubRand) Float64() float64 { return r.v }

// seqRand cycles through a fixed sequence of fractions.
type seqRand struct {
	vals []float64
	i    int
}

func (r *seqRand) Float64() float64 {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

func energyTemplate(unit types.UnitOfMeasure) model.SampledValueTemplate {
	return model.SampledValueTemplate{Measurand: types.MeasurandEnergyActiveImportRegister, Unit: unit}
}

func newStation(info model.StationInfo, meterValues []model.SampledValueTemplate) *station.Station {
	tmpl := &model.Template{
		Connectors: map[string]model.ConnectorTemplate{
			"default": {MeterValues: meterValues},
		},
	}
	return station.New(info, tmpl, 2, nopLogger{}, stubClock{})
}

func singlePhaseInfo() model.StationInfo {
	return model.StationInfo{
		ID:             "cs-0001",
		CurrentOutType: model.CurrentAC,
		VoltageOut:     230,
		NumberOfPhases: 1,
		MaximumPower:   7360,
		PowerDivider:   1,
	}
}

func threePhaseInfo() model.StationInfo {
	info := singlePhaseInfo()
	info.NumberOfPhases = 3
	info.MaximumPower = 22080
	return info
}

func TestEnergyAccumulationSinglePhase(t *testing.T) {
	st := newStation(singlePhaseInfo(), []model.SampledValueTemplate{energyTemplate(types.UnitOfMeasureWh)})
	st.BeginTransaction(1, 42, "TAG-1", nil)
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, stubRand{v: 0.5})

	maxIncrement := RoundTo(7360*60_000/3_600_000.0, 2) // 122.67
	var last float64
	for i := 0; i < 2; i++ {
		before := st.Connector(1).EnergyActiveImportRegister
		mv, err := syn.BuildMeterValue(1, 42, time.Minute, false)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if len(mv.SampledValue) != 1 {
			t.Fatalf("expected one sample got %d", len(mv.SampledValue))
		}
		c := st.Connector(1)
		delta := c.EnergyActiveImportRegister - before
		if delta < 0 || delta > maxIncrement {
			t.Fatalf("increment %.2f outside [0, %.2f]", delta, maxIncrement)
		}
		if math.Abs(c.TransactionEnergyActiveImportRegister-c.EnergyActiveImportRegister) > 1e-9 {
			t.Fatalf("registers diverged: %v vs %v", c.TransactionEnergyActiveImportRegister, c.EnergyActiveImportRegister)
		}
		emitted, err := strconv.ParseFloat(mv.SampledValue[0].Value, 64)
		if err != nil {
			t.Fatalf("parse emitted: %v", err)
		}
		if emitted < last {
			t.Fatalf("register decreased: %v < %v", emitted, last)
		}
		last = emitted
	}
}

func TestEnergyRegisterMonotonic(t *testing.T) {
	st := newStation(singlePhaseInfo(), []model.SampledValueTemplate{energyTemplate(types.UnitOfMeasureWh)})
	st.BeginTransaction(1, 7, "TAG-1", nil)
	rng := &seqRand{vals: []float64{0.9, 0.1, 0.7, 0.3, 0.999, 0}}
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, rng)

	var last float64
	for i := 0; i < 6; i++ {
		mv, err := syn.BuildMeterValue(1, 7, time.Minute, false)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		v, _ := strconv.ParseFloat(mv.SampledValue[0].Value, 64)
		if v < last {
			t.Fatalf("iteration %d: register decreased %v < %v", i, v, last)
		}
		last = v
	}
}

func TestThreePhaseVoltageEmissionOrder(t *testing.T) {
	info := threePhaseInfo()
	info.PhaseLineToLineVoltageMeterValues = true
	st := newStation(info, []model.SampledValueTemplate{
		{Measurand: types.MeasurandVoltage, Unit: types.UnitOfMeasureV},
	})
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, stubRand{v: 0.5})

	mv, err := syn.BuildMeterValue(1, 0, time.Minute, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	wantPhases := []types.Phase{
		types.PhaseL1N, types.PhaseL2N, types.PhaseL3N,
		types.PhaseL1L2, types.PhaseL2L3, types.PhaseL3L1,
	}
	if len(mv.SampledValue) != len(wantPhases) {
		t.Fatalf("expected %d samples got %d", len(wantPhases), len(mv.SampledValue))
	}
	for i, sv := range mv.SampledValue {
		if sv.Phase != wantPhases[i] {
			t.Fatalf("sample %d: phase %s, want %s", i, sv.Phase, wantPhases[i])
		}
	}
	// A centered draw lands on the nominal value.
	if mv.SampledValue[0].Value != "230" {
		t.Fatalf("L1-N voltage %s, want 230", mv.SampledValue[0].Value)
	}
	lineToLine, _ := strconv.ParseFloat(mv.SampledValue[3].Value, 64)
	if math.Abs(lineToLine-398.37) > 1e-9 {
		t.Fatalf("L1-L2 voltage %.2f, want 398.37", lineToLine)
	}
}

func TestSinglePhaseVoltageAggregateOnly(t *testing.T) {
	st := newStation(singlePhaseInfo(), []model.SampledValueTemplate{
		{Measurand: types.MeasurandVoltage, Unit: types.UnitOfMeasureV},
	})
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, stubRand{v: 0.5})
	mv, err := syn.BuildMeterValue(1, 0, time.Minute, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(mv.SampledValue) != 1 || mv.SampledValue[0].Phase != "" {
		t.Fatalf("expected a single aggregate voltage, got %#v", mv.SampledValue)
	}
}

func TestPowerAggregateMatchesPhaseSum(t *testing.T) {
	st := newStation(threePhaseInfo(), []model.SampledValueTemplate{
		{Measurand: types.MeasurandPowerActiveImport, Unit: types.UnitOfMeasureW},
	})
	rng := &seqRand{vals: []float64{0.2, 0.5, 0.8}}
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, rng)

	mv, err := syn.BuildMeterValue(1, 0, time.Minute, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(mv.SampledValue) != 4 {
		t.Fatalf("expected aggregate plus 3 phases, got %d", len(mv.SampledValue))
	}
	aggregate, _ := strconv.ParseFloat(mv.SampledValue[0].Value, 64)
	var sum float64
	for _, sv := range mv.SampledValue[1:] {
		v, _ := strconv.ParseFloat(sv.Value, 64)
		sum += v
	}
	if math.Abs(aggregate-sum) > 0.01 {
		t.Fatalf("|aggregate - sum| = %v", math.Abs(aggregate-sum))
	}
}

func TestCurrentAggregateIsPhaseAverage(t *testing.T) {
	st := newStation(threePhaseInfo(), []model.SampledValueTemplate{
		{Measurand: types.MeasurandCurrentImport, Unit: types.UnitOfMeasureA},
	})
	rng := &seqRand{vals: []float64{0.1, 0.4, 0.9}}
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, rng)

	mv, err := syn.BuildMeterValue(1, 0, time.Minute, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(mv.SampledValue) != 4 {
		t.Fatalf("expected aggregate plus 3 phases, got %d", len(mv.SampledValue))
	}
	aggregate, _ := strconv.ParseFloat(mv.SampledValue[0].Value, 64)
	var sum float64
	maxAmperage := station.ACAmperagePerPhase(3, 22080, 230)
	for _, sv := range mv.SampledValue[1:] {
		v, _ := strconv.ParseFloat(sv.Value, 64)
		if v < 0 || v > maxAmperage {
			t.Fatalf("phase current %v outside [0, %v]", v, maxAmperage)
		}
		sum += v
	}
	if math.Abs(aggregate-sum/3) > 0.01 {
		t.Fatalf("|aggregate - avg| = %v", math.Abs(aggregate-sum/3))
	}
}

func TestSoCStaysInRange(t *testing.T) {
	for _, frac := range []float64{0, 0.5, 1} {
		st := newStation(singlePhaseInfo(), []model.SampledValueTemplate{
			{Measurand: types.MeasurandSoC},
		})
		syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, stubRand{v: frac})
		mv, err := syn.BuildMeterValue(1, 0, time.Minute, false)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		v, _ := strconv.ParseFloat(mv.SampledValue[0].Value, 64)
		if v < 0 || v > 100 {
			t.Fatalf("SoC %v outside [0, 100]", v)
		}
		if mv.SampledValue[0].Location != types.LocationEV {
			t.Fatalf("SoC location %s, want EV", mv.SampledValue[0].Location)
		}
	}
}

func TestMeasurandEmissionOrder(t *testing.T) {
	info := threePhaseInfo()
	info.MainVoltageMeterValues = true
	st := newStation(info, []model.SampledValueTemplate{
		energyTemplate(types.UnitOfMeasureWh),
		{Measurand: types.MeasurandSoC},
		{Measurand: types.MeasurandVoltage, Unit: types.UnitOfMeasureV},
		{Measurand: types.MeasurandPowerActiveImport, Unit: types.UnitOfMeasureW},
		{Measurand: types.MeasurandCurrentImport, Unit: types.UnitOfMeasureA},
	})
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, stubRand{v: 0.5})
	mv, err := syn.BuildMeterValue(1, 0, time.Minute, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []types.Measurand{
		types.MeasurandSoC,
		types.MeasurandVoltage, types.MeasurandVoltage, types.MeasurandVoltage, types.MeasurandVoltage,
		types.MeasurandPowerActiveImport, types.MeasurandPowerActiveImport, types.MeasurandPowerActiveImport, types.MeasurandPowerActiveImport,
		types.MeasurandCurrentImport, types.MeasurandCurrentImport, types.MeasurandCurrentImport, types.MeasurandCurrentImport,
		types.MeasurandEnergyActiveImportRegister,
	}
	if len(mv.SampledValue) != len(want) {
		t.Fatalf("expected %d samples got %d", len(want), len(mv.SampledValue))
	}
	for i, sv := range mv.SampledValue {
		if sv.Measurand != want[i] {
			t.Fatalf("sample %d: measurand %s, want %s", i, sv.Measurand, want[i])
		}
	}
}

func TestNoNullFieldsLeak(t *testing.T) {
	st := newStation(singlePhaseInfo(), []model.SampledValueTemplate{
		{Measurand: types.MeasurandPowerActiveImport, Unit: types.UnitOfMeasureW},
	})
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, stubRand{v: 0.5})
	mv, err := syn.BuildMeterValue(1, 0, time.Minute, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sv := mv.SampledValue[0]
	if sv.Value == "" {
		t.Fatalf("value must always be set")
	}
	// Fields without a source stay empty and are dropped by omitempty.
	if sv.Phase != "" || sv.Location != "" || sv.Context != "" {
		t.Fatalf("unexpected populated fields: %#v", sv)
	}
}

func TestPowerDividerZeroIsInternalError(t *testing.T) {
	info := singlePhaseInfo()
	info.PowerDivider = 0
	st := newStation(info, []model.SampledValueTemplate{
		{Measurand: types.MeasurandPowerActiveImport, Unit: types.UnitOfMeasureW},
	})
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, stubRand{v: 0.5})
	if _, err := syn.BuildMeterValue(1, 0, time.Minute, false); err == nil {
		t.Fatalf("expected error for zero power divider")
	}
}

func TestUnknownCurrentTypeIsInternalError(t *testing.T) {
	info := singlePhaseInfo()
	info.CurrentOutType = "XY"
	st := newStation(info, []model.SampledValueTemplate{
		{Measurand: types.MeasurandPowerActiveImport, Unit: types.UnitOfMeasureW},
	})
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, stubRand{v: 0.5})
	if _, err := syn.BuildMeterValue(1, 0, time.Minute, false); err == nil {
		t.Fatalf("expected error for unknown current type")
	}
}

func TestEnergyEmittedInKWh(t *testing.T) {
	st := newStation(singlePhaseInfo(), []model.SampledValueTemplate{energyTemplate(types.UnitOfMeasureKWh)})
	st.BeginTransaction(1, 9, "TAG-1", nil)
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, stubRand{v: 1})
	mv, err := syn.BuildMeterValue(1, 9, time.Hour, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	registerWh := st.Connector(1).TransactionEnergyActiveImportRegister
	emitted, _ := strconv.ParseFloat(mv.SampledValue[0].Value, 64)
	if math.Abs(emitted-RoundTo(registerWh/1000, 2)) > 1e-9 {
		t.Fatalf("emitted %v, register %v Wh", emitted, registerWh)
	}
}

func TestTransactionBoundaryValues(t *testing.T) {
	st := newStation(singlePhaseInfo(), []model.SampledValueTemplate{energyTemplate(types.UnitOfMeasureWh)})
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, stubRand{v: 0.5})

	begin := syn.BuildTransactionBeginMeterValue(1, 1234.56789)
	if len(begin.SampledValue) != 1 {
		t.Fatalf("expected one begin sample")
	}
	if begin.SampledValue[0].Context != types.ReadingContextTransactionBegin {
		t.Fatalf("begin context %s", begin.SampledValue[0].Context)
	}
	if begin.SampledValue[0].Value != "1234.5679" {
		t.Fatalf("begin value %s, want 1234.5679", begin.SampledValue[0].Value)
	}

	end := syn.BuildTransactionEndMeterValue(1, 2000)
	if end.SampledValue[0].Context != types.ReadingContextTransactionEnd {
		t.Fatalf("end context %s", end.SampledValue[0].Context)
	}

	data := BuildTransactionDataMeterValues(begin, end)
	if len(data) != 2 || data[0].SampledValue[0].Context != types.ReadingContextTransactionBegin {
		t.Fatalf("transaction data out of order")
	}
}

func TestCustomValueClampedWhenLimitationEnabled(t *testing.T) {
	info := singlePhaseInfo()
	info.CustomValueLimitationMeterValues = true
	st := newStation(info, []model.SampledValueTemplate{
		{Measurand: types.MeasurandPowerActiveImport, Unit: types.UnitOfMeasureW, Value: "99999", FluctuationPercent: -1},
	})
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, stubRand{v: 0.5})
	mv, err := syn.BuildMeterValue(1, 0, time.Minute, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// 99999 W exceeds the 7360 W connector bound; limitation replaces it
	// with the fallback.
	if mv.SampledValue[0].Value != "0" {
		t.Fatalf("clamped value %s, want 0", mv.SampledValue[0].Value)
	}
}

func TestCustomValueSurfacedWhenLimitationDisabled(t *testing.T) {
	st := newStation(singlePhaseInfo(), []model.SampledValueTemplate{
		{Measurand: types.MeasurandPowerActiveImport, Unit: types.UnitOfMeasureW, Value: "99999", FluctuationPercent: -1},
	})
	syn := New(st, nopLogger{}, stubClock{t: time.Unix(1700000000, 0)}, stubRand{v: 0.5})
	mv, err := syn.BuildMeterValue(1, 0, time.Minute, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if mv.SampledValue[0].Value != "99999" {
		t.Fatalf("out-of-band value %s, want surfaced 99999", mv.SampledValue[0].Value)
	}
}
