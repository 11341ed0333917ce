package smartcharging

import (
	"sort"
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"github.com/kilianp07/csim/core/model"
)

// CompositeSchedule computes the effective limit over [now, now+duration]
// from the profiles installed on the connector and on the station itself.
// Profiles stack by descending stackLevel; ties keep insertion order.
func CompositeSchedule(connector, stationConnector *model.Connector, now time.Time, duration time.Duration) *types.ChargingSchedule {
	var profiles []types.ChargingProfile
	if stationConnector != nil {
		profiles = append(profiles, stationConnector.ChargingProfiles...)
	}
	if connector != nil && connector != stationConnector {
		profiles = append(profiles, connector.ChargingProfiles...)
	}
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].StackLevel > profiles[j].StackLevel
	})

	iv := Interval{Start: now, End: now.Add(duration)}
	var schedules []*types.ChargingSchedule
	for i := range profiles {
		if s := normalizeSchedule(profiles[i].ChargingSchedule, now, duration); s != nil {
			schedules = append(schedules, s)
		}
	}
	switch len(schedules) {
	case 0:
		return nil
	case 1:
		return ComposeChargingSchedule(schedules[0], iv)
	}
	composite := ComposeChargingSchedules(schedules[0], schedules[1], iv)
	for _, s := range schedules[2:] {
		composite = ComposeChargingSchedules(composite, s, iv)
	}
	return composite
}

// normalizeSchedule anchors schedules of relative profiles on the request
// instant and bounds open-ended ones to the requested window.
func normalizeSchedule(s *types.ChargingSchedule, now time.Time, window time.Duration) *types.ChargingSchedule {
	if s == nil {
		return nil
	}
	out := cloneSchedule(s)
	if out.StartSchedule == nil {
		out.StartSchedule = types.NewDateTime(now)
	}
	if out.Duration == nil {
		d := int(window.Seconds())
		out.Duration = &d
	}
	return out
}
