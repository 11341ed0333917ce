package station

import (
	"github.com/kilianp07/csim/core/logger"
	"github.com/kilianp07/csim/core/model"
)

// FeatureGate rejects commands whose feature profile is not enabled in the
// station configuration. It has no side effects beyond a warning log.
type FeatureGate struct {
	info model.StationInfo
	log  logger.Logger
}

// NewFeatureGate builds a gate over the station's enabled profiles.
func NewFeatureGate(info model.StationInfo, log logger.Logger) *FeatureGate {
	return &FeatureGate{info: info, log: log}
}

// Check reports whether the profile backing the command is enabled. Every
// inbound command handler consults the gate before touching state.
func (g *FeatureGate) Check(profile model.FeatureProfile, command string) bool {
	if g.info.HasFeatureProfile(profile) {
		return true
	}
	g.log.Warnf("%s rejected: feature profile %s not enabled", command, profile)
	return false
}
