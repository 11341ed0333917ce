package smartcharging

import (
	"testing"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"github.com/kilianp07/csim/core/model"
)

func profile(id, stackLevel int, purpose types.ChargingProfilePurposeType) types.ChargingProfile {
	return types.ChargingProfile{
		ChargingProfileId:      id,
		StackLevel:             stackLevel,
		ChargingProfilePurpose: purpose,
		ChargingProfileKind:    types.ChargingProfileKindAbsolute,
	}
}

func TestSetChargingProfileReplacesSameStackAndPurpose(t *testing.T) {
	c := model.NewConnector()
	SetChargingProfile(c, profile(1, 2, types.ChargingProfilePurposeTxProfile))
	SetChargingProfile(c, profile(2, 2, types.ChargingProfilePurposeTxProfile))
	if len(c.ChargingProfiles) != 1 {
		t.Fatalf("expected 1 profile got %d", len(c.ChargingProfiles))
	}
	if c.ChargingProfiles[0].ChargingProfileId != 2 {
		t.Fatalf("resident profile id %d, want 2", c.ChargingProfiles[0].ChargingProfileId)
	}
}

func TestSetChargingProfileReplacesSameID(t *testing.T) {
	c := model.NewConnector()
	SetChargingProfile(c, profile(7, 1, types.ChargingProfilePurposeTxDefaultProfile))
	SetChargingProfile(c, profile(7, 3, types.ChargingProfilePurposeTxDefaultProfile))
	if len(c.ChargingProfiles) != 1 {
		t.Fatalf("expected 1 profile got %d", len(c.ChargingProfiles))
	}
	if c.ChargingProfiles[0].StackLevel != 3 {
		t.Fatalf("stack level %d, want 3", c.ChargingProfiles[0].StackLevel)
	}
}

func TestSetChargingProfileAppendsDistinct(t *testing.T) {
	c := model.NewConnector()
	SetChargingProfile(c, profile(1, 1, types.ChargingProfilePurposeTxProfile))
	SetChargingProfile(c, profile(2, 2, types.ChargingProfilePurposeTxProfile))
	SetChargingProfile(c, profile(3, 2, types.ChargingProfilePurposeTxDefaultProfile))
	if len(c.ChargingProfiles) != 3 {
		t.Fatalf("expected 3 profiles got %d", len(c.ChargingProfiles))
	}
}

func TestClearChargingProfilesByID(t *testing.T) {
	c := model.NewConnector()
	SetChargingProfile(c, profile(1, 1, types.ChargingProfilePurposeTxProfile))
	SetChargingProfile(c, profile(2, 2, types.ChargingProfilePurposeTxProfile))
	id := 1
	if !ClearChargingProfiles(c, &id, "", nil) {
		t.Fatalf("expected a profile cleared")
	}
	if len(c.ChargingProfiles) != 1 || c.ChargingProfiles[0].ChargingProfileId != 2 {
		t.Fatalf("wrong survivor: %#v", c.ChargingProfiles)
	}
}

func TestClearChargingProfilesByPurposeOnly(t *testing.T) {
	c := model.NewConnector()
	SetChargingProfile(c, profile(1, 1, types.ChargingProfilePurposeTxProfile))
	SetChargingProfile(c, profile(2, 2, types.ChargingProfilePurposeChargePointMaxProfile))
	if !ClearChargingProfiles(c, nil, types.ChargingProfilePurposeTxProfile, nil) {
		t.Fatalf("expected a profile cleared")
	}
	if len(c.ChargingProfiles) != 1 || c.ChargingProfiles[0].ChargingProfileId != 2 {
		t.Fatalf("wrong survivor: %#v", c.ChargingProfiles)
	}
}

func TestClearChargingProfilesByStackLevelOnly(t *testing.T) {
	c := model.NewConnector()
	SetChargingProfile(c, profile(1, 1, types.ChargingProfilePurposeTxProfile))
	SetChargingProfile(c, profile(2, 2, types.ChargingProfilePurposeTxProfile))
	level := 2
	if !ClearChargingProfiles(c, nil, "", &level) {
		t.Fatalf("expected a profile cleared")
	}
	if len(c.ChargingProfiles) != 1 || c.ChargingProfiles[0].ChargingProfileId != 1 {
		t.Fatalf("wrong survivor: %#v", c.ChargingProfiles)
	}
}

func TestClearChargingProfilesEmptyFilterClearsAll(t *testing.T) {
	c := model.NewConnector()
	SetChargingProfile(c, profile(1, 1, types.ChargingProfilePurposeTxProfile))
	SetChargingProfile(c, profile(2, 2, types.ChargingProfilePurposeChargePointMaxProfile))
	if !ClearChargingProfiles(c, nil, "", nil) {
		t.Fatalf("expected profiles cleared")
	}
	if len(c.ChargingProfiles) != 0 {
		t.Fatalf("expected empty list, got %d", len(c.ChargingProfiles))
	}
	// Idempotent on the empty list.
	if ClearChargingProfiles(c, nil, "", nil) {
		t.Fatalf("second clear must report nothing removed")
	}
}
