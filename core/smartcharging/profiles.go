package smartcharging

import (
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"github.com/kilianp07/csim/core/model"
)

// SetChargingProfile installs a profile on the connector. A profile with a
// matching chargingProfileId or a matching (stackLevel, purpose) pair
// replaces the resident entry in place; otherwise the profile is appended.
func SetChargingProfile(c *model.Connector, profile types.ChargingProfile) {
	for i := range c.ChargingProfiles {
		p := &c.ChargingProfiles[i]
		if p.ChargingProfileId == profile.ChargingProfileId ||
			(p.StackLevel == profile.StackLevel && p.ChargingProfilePurpose == profile.ChargingProfilePurpose) {
			c.ChargingProfiles[i] = profile
			return
		}
	}
	c.ChargingProfiles = append(c.ChargingProfiles, profile)
}

// ClearChargingProfiles removes profiles matching the filter and reports
// whether at least one was removed. An absent purpose or stackLevel acts as a
// wildcard on its path, so an empty filter clears everything. A filter with
// only an id clears just the profile carrying that id.
func ClearChargingProfiles(c *model.Connector, id *int, purpose types.ChargingProfilePurposeType, stackLevel *int) bool {
	if len(c.ChargingProfiles) == 0 {
		return false
	}
	match := func(p types.ChargingProfile) bool {
		if id != nil && p.ChargingProfileId == *id {
			return true
		}
		if purpose == "" && ((stackLevel == nil && id == nil) || (stackLevel != nil && p.StackLevel == *stackLevel)) {
			return true
		}
		if stackLevel == nil && purpose != "" && p.ChargingProfilePurpose == purpose {
			return true
		}
		return purpose != "" && stackLevel != nil &&
			p.ChargingProfilePurpose == purpose && p.StackLevel == *stackLevel
	}
	kept := c.ChargingProfiles[:0]
	cleared := false
	for _, p := range c.ChargingProfiles {
		if match(p) {
			cleared = true
			continue
		}
		kept = append(kept, p)
	}
	c.ChargingProfiles = kept
	return cleared
}
