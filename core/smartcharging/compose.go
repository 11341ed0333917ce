package smartcharging

import (
	"sort"
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"
)

// Interval is a composite window [Start, End]; period instants on either
// bound count as inside it.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) overlaps(start, end time.Time) bool {
	return start.Before(i.End) && end.After(i.Start)
}

// scheduleSpan returns the schedule's own interval. Schedules without a start
// or duration cannot be projected.
func scheduleSpan(s *types.ChargingSchedule) (time.Time, time.Time, bool) {
	if s == nil || s.StartSchedule == nil || s.Duration == nil {
		return time.Time{}, time.Time{}, false
	}
	start := s.StartSchedule.Time
	return start, start.Add(time.Duration(*s.Duration) * time.Second), true
}

func cloneSchedule(s *types.ChargingSchedule) *types.ChargingSchedule {
	out := *s
	if s.Duration != nil {
		d := *s.Duration
		out.Duration = &d
	}
	if s.StartSchedule != nil {
		ss := *s.StartSchedule
		out.StartSchedule = &ss
	}
	out.ChargingSchedulePeriod = append([]types.ChargingSchedulePeriod(nil), s.ChargingSchedulePeriod...)
	return &out
}

// ComposeChargingSchedule projects one schedule onto the composite interval,
// clipping its timing without reinterpreting limits or phase counts. A
// schedule entirely outside the interval projects to nil.
func ComposeChargingSchedule(s *types.ChargingSchedule, iv Interval) *types.ChargingSchedule {
	start, end, ok := scheduleSpan(s)
	if !ok || !iv.overlaps(start, end) {
		return nil
	}
	out := cloneSchedule(s)
	sort.SliceStable(out.ChargingSchedulePeriod, func(i, j int) bool {
		return out.ChargingSchedulePeriod[i].StartPeriod < out.ChargingSchedulePeriod[j].StartPeriod
	})

	if start.Before(iv.Start) {
		// Keep periods inside the window, plus the one in effect when the
		// window begins so the clipped region starts with a defined limit.
		var kept []types.ChargingSchedulePeriod
		periods := out.ChargingSchedulePeriod
		for i, p := range periods {
			instant := start.Add(time.Duration(p.StartPeriod) * time.Second)
			inside := !instant.Before(iv.Start) && !instant.After(iv.End)
			if inside {
				kept = append(kept, p)
				continue
			}
			if i+1 < len(periods) {
				next := start.Add(time.Duration(periods[i+1].StartPeriod) * time.Second)
				if !next.Before(iv.Start) && !next.After(iv.End) {
					kept = append(kept, p)
				}
			}
		}
		if len(kept) > 0 && kept[0].StartPeriod != 0 {
			kept[0].StartPeriod = 0
		}
		out.ChargingSchedulePeriod = kept
		out.StartSchedule = types.NewDateTime(iv.Start)
		d := int(end.Sub(iv.Start).Seconds())
		out.Duration = &d
		start = iv.Start
	}
	if end.After(iv.End) {
		d := int(iv.End.Sub(start).Seconds())
		out.Duration = &d
		var kept []types.ChargingSchedulePeriod
		for _, p := range out.ChargingSchedulePeriod {
			instant := start.Add(time.Duration(p.StartPeriod) * time.Second)
			if !instant.Before(iv.Start) && !instant.After(iv.End) {
				kept = append(kept, p)
			}
		}
		out.ChargingSchedulePeriod = kept
	}
	return out
}

// ComposeChargingSchedules stacks two schedules over the composite interval.
// The higher-priority schedule wins over its footprint; outside it the lower
// schedule's limits apply. Returns nil when neither schedule crosses the
// interval.
func ComposeChargingSchedules(higher, lower *types.ChargingSchedule, iv Interval) *types.ChargingSchedule {
	if higher == nil && lower == nil {
		return nil
	}
	if lower == nil {
		return ComposeChargingSchedule(higher, iv)
	}
	if higher == nil {
		return ComposeChargingSchedule(lower, iv)
	}
	h := ComposeChargingSchedule(higher, iv)
	l := ComposeChargingSchedule(lower, iv)
	if h == nil {
		return l
	}
	if l == nil {
		return h
	}

	hStart, hEnd, _ := scheduleSpan(h)
	lStart, lEnd, _ := scheduleSpan(l)
	higherFirst := hStart.Before(lStart)

	resultStart := hStart
	if lStart.Before(hStart) {
		resultStart = lStart
	}
	resultEnd := hEnd
	if lEnd.After(hEnd) {
		resultEnd = lEnd
	}
	duration := int(resultEnd.Sub(resultStart).Seconds())
	hDelta := int(hStart.Sub(resultStart).Seconds())
	lDelta := int(lStart.Sub(resultStart).Seconds())

	offset := func(periods []types.ChargingSchedulePeriod, delta int) []types.ChargingSchedulePeriod {
		out := make([]types.ChargingSchedulePeriod, len(periods))
		for i, p := range periods {
			p.StartPeriod += delta
			out[i] = p
		}
		return out
	}

	out := cloneSchedule(h)
	out.StartSchedule = types.NewDateTime(resultStart)
	out.Duration = &duration

	overlap := hEnd.After(lStart) && lEnd.After(hStart)
	var periods []types.ChargingSchedulePeriod
	if !overlap {
		periods = append(offset(h.ChargingSchedulePeriod, hDelta), offset(l.ChargingSchedulePeriod, lDelta)...)
	} else {
		ovStart := hStart
		if lStart.After(hStart) {
			ovStart = lStart
		}
		ovEnd := hEnd
		if lEnd.Before(hEnd) {
			ovEnd = lEnd
		}
		// The higher-priority schedule keeps its whole footprint.
		periods = offset(h.ChargingSchedulePeriod, hDelta)
		// From the lower schedule, keep periods starting outside the
		// overlap — except one whose successor starts inside it, so the
		// lower limit is not re-asserted right before higher takes over.
		lp := l.ChargingSchedulePeriod
		var survivors []types.ChargingSchedulePeriod
		for i, p := range lp {
			instant := lStart.Add(time.Duration(p.StartPeriod) * time.Second)
			if !instant.Before(ovStart) && !instant.After(ovEnd) {
				continue
			}
			if i+1 < len(lp) && instant.Before(ovStart) {
				next := lStart.Add(time.Duration(lp[i+1].StartPeriod) * time.Second)
				if !next.Before(ovStart) && !next.After(ovEnd) {
					continue
				}
			}
			survivors = append(survivors, p)
		}
		if !higherFirst && len(survivors) > 0 && survivors[0].StartPeriod != 0 {
			survivors[0].StartPeriod = 0
		}
		periods = append(periods, offset(survivors, lDelta)...)
	}
	sort.SliceStable(periods, func(i, j int) bool { return periods[i].StartPeriod < periods[j].StartPeriod })
	out.ChargingSchedulePeriod = periods
	return out
}
