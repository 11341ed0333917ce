package meter

import (
	"math"
	"strconv"

	"github.com/kilianp07/csim/core/logger"
	"github.com/kilianp07/csim/core/model"
)

// DefaultFluctuationPercent is applied when a template carries a literal
// value but no fluctuation of its own.
const DefaultFluctuationPercent = 5

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	factor := math.Pow10(places)
	return math.Round(v*factor) / factor
}

// FormatValue renders a float the way it goes on the wire.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// randomFloat draws uniformly from [min, max] through the injected RNG.
func randomFloat(rng model.Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rng.Float64()*(max-min)
}

// randomFloatRounded draws uniformly from [min, max], rounded to 2 decimals.
func randomFloatRounded(rng model.Rand, min, max float64) float64 {
	return RoundTo(randomFloat(rng, min, max), 2)
}

// fluctuated applies a random fluctuation of ±percent to value, rounded to
// 2 decimals. The fluctuation is a pure function of (value, percent, rng).
func fluctuated(rng model.Rand, value, percent float64) float64 {
	if percent <= 0 {
		return RoundTo(value, 2)
	}
	delta := value * percent / 100
	return randomFloatRounded(rng, value-delta, value+delta)
}

// clampOptions tunes clampCustomValue.
type clampOptions struct {
	// limitationEnabled mirrors the customValueLimitationMeterValues flag.
	limitationEnabled bool
	// fallback is returned when limitation triggers.
	fallback float64
	// unitMultiplier converts the raw template value into register units
	// before comparing against the bounds. Zero means 1.
	unitMultiplier float64
}

// clampCustomValue validates a literal template value against [min, max].
// Out-of-band values are replaced by the fallback only when limitation is
// enabled; otherwise they are surfaced unchanged.
func clampCustomValue(raw, max, min float64, opts clampOptions, log logger.Logger) float64 {
	mult := opts.unitMultiplier
	if mult == 0 {
		mult = 1
	}
	v := raw * mult
	if opts.limitationEnabled && (v < min || v > max) {
		log.Warnf("custom meter value %v outside [%v, %v], using fallback %v", v, min, max, opts.fallback)
		return opts.fallback
	}
	return v
}

// parseTemplateValue parses a literal template value, logging malformed ones.
func parseTemplateValue(raw string, log logger.Logger) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warnf("unparsable template value %q: %v", raw, err)
		return 0
	}
	return v
}
