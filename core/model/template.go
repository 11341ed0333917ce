package model

import (
	"fmt"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"
)

// SampledValueTemplate configures the synthesis of one measurand sample.
// A literal Value takes precedence over random generation; MinimumValue bounds
// the SoC random draw from below, other measurands draw from zero.
type SampledValueTemplate struct {
	Measurand types.Measurand      `json:"measurand"`
	Unit      types.UnitOfMeasure  `json:"unit"`
	Phase     types.Phase          `json:"phase"`
	Location  types.Location       `json:"location"`
	Context   types.ReadingContext `json:"context"`

	Value              string  `json:"value"`
	MinimumValue       float64 `json:"minimumValue"`
	FluctuationPercent float64 `json:"fluctuationPercent"`
}

// ConnectorTemplate carries the per-connector measurand templates.
type ConnectorTemplate struct {
	MeterValues []SampledValueTemplate `json:"meterValues"`
}

// Template is the charging-station template a fleet entry is stamped from.
// It is read once at boot; stations hold immutable snapshots.
type Template struct {
	Name              string `json:"name"`
	ChargePointModel  string `json:"chargePointModel"`
	ChargePointVendor string `json:"chargePointVendor"`

	CurrentOutType string  `json:"currentOutType"`
	VoltageOut     float64 `json:"voltageOut"`
	NumberOfPhases int     `json:"numberOfPhases"`
	MaximumPower   float64 `json:"maximumPower"`

	NumberOfConnectors      int  `json:"numberOfConnectors"`
	PowerSharedByConnectors bool `json:"powerSharedByConnectors"`

	FeatureProfiles []string `json:"featureProfiles"`

	MainVoltageMeterValues            bool `json:"mainVoltageMeterValues"`
	PhaseLineToLineVoltageMeterValues bool `json:"phaseLineToLineVoltageMeterValues"`
	CustomValueLimitationMeterValues  bool `json:"customValueLimitationMeterValues"`
	AuthorizeRemoteTxRequests         bool `json:"authorizeRemoteTxRequests"`

	HeartbeatIntervalSeconds        int `json:"heartbeatIntervalSeconds"`
	MeterValueSampleIntervalSeconds int `json:"meterValueSampleIntervalSeconds"`

	// Connectors maps a connector index ("0".."N") or "default" to its
	// measurand templates.
	Connectors map[string]ConnectorTemplate `json:"connectors"`
}

// SetDefaults applies sane defaults.
func (t *Template) SetDefaults() {
	if t.CurrentOutType == "" {
		t.CurrentOutType = string(CurrentAC)
	}
	if t.NumberOfPhases == 0 {
		t.NumberOfPhases = 3
	}
	if t.NumberOfConnectors == 0 {
		t.NumberOfConnectors = 1
	}
	if t.HeartbeatIntervalSeconds == 0 {
		t.HeartbeatIntervalSeconds = 60
	}
	if t.MeterValueSampleIntervalSeconds == 0 {
		t.MeterValueSampleIntervalSeconds = 60
	}
	if len(t.FeatureProfiles) == 0 {
		t.FeatureProfiles = []string{string(ProfileCore)}
	}
}

// Validate checks mandatory fields.
func (t Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if t.CurrentOutType != string(CurrentAC) && t.CurrentOutType != string(CurrentDC) {
		return fmt.Errorf("unknown currentOutType %s", t.CurrentOutType)
	}
	if t.NumberOfPhases != 1 && t.NumberOfPhases != 3 {
		return fmt.Errorf("numberOfPhases must be 1 or 3, got %d", t.NumberOfPhases)
	}
	if t.VoltageOut <= 0 {
		return fmt.Errorf("voltageOut must be positive")
	}
	if t.MaximumPower <= 0 {
		return fmt.Errorf("maximumPower must be positive")
	}
	if t.NumberOfConnectors < 1 {
		return fmt.Errorf("numberOfConnectors must be at least 1")
	}
	return nil
}

// StationInfo stamps an immutable station identity out of the template.
func (t Template) StationInfo(id string) StationInfo {
	divider := 1
	if t.PowerSharedByConnectors {
		divider = t.NumberOfConnectors
	}
	profiles := make([]FeatureProfile, 0, len(t.FeatureProfiles))
	for _, p := range t.FeatureProfiles {
		profiles = append(profiles, FeatureProfile(p))
	}
	return StationInfo{
		ID:                id,
		TemplateName:      t.Name,
		ChargePointModel:  t.ChargePointModel,
		ChargePointVendor: t.ChargePointVendor,
		CurrentOutType:    CurrentType(t.CurrentOutType),
		VoltageOut:        t.VoltageOut,
		NumberOfPhases:    t.NumberOfPhases,
		MaximumPower:      t.MaximumPower,
		PowerDivider:      divider,
		EnabledProfiles:   profiles,

		MainVoltageMeterValues:            t.MainVoltageMeterValues,
		PhaseLineToLineVoltageMeterValues: t.PhaseLineToLineVoltageMeterValues,
		CustomValueLimitationMeterValues:  t.CustomValueLimitationMeterValues,
		AuthorizeRemoteTxRequests:         t.AuthorizeRemoteTxRequests,
	}
}
