package ocpp

import (
	"fmt"
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/firmware"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/localauth"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/remotetrigger"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/reservation"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/smartcharging"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"
	"github.com/lorenzodonini/ocpp-go/ocppj"

	"github.com/kilianp07/csim/core/logger"
	"github.com/kilianp07/csim/core/model"
	"github.com/kilianp07/csim/core/session"
	sc "github.com/kilianp07/csim/core/smartcharging"
	"github.com/kilianp07/csim/core/station"
)

// Triggers lets a TriggerMessage schedule an outbound request on the station
// loop without re-entering the handler.
type Triggers interface {
	TriggerBootNotification()
	TriggerHeartbeat()
	TriggerStatusNotification(connectorID int)
	TriggerMeterValues(connectorID int)
	TriggerDiagnosticsStatusNotification()
	TriggerFirmwareStatusNotification()
}

// Handler services inbound OCPP commands. Every command goes through the
// feature gate before the coordinator or the smart-charging manager touches
// the ledger.
type Handler struct {
	station     *station.Station
	gate        *station.FeatureGate
	coordinator *session.Coordinator
	triggers    Triggers
	clock       model.Clock
	log         logger.Logger

	localListVersion int
}

// NewHandler wires the inbound side of a station.
func NewHandler(st *station.Station, gate *station.FeatureGate, coordinator *session.Coordinator, triggers Triggers, clock model.Clock, log logger.Logger) *Handler {
	return &Handler{station: st, gate: gate, coordinator: coordinator, triggers: triggers, clock: clock, log: log}
}

// gateErr converts a gate rejection into the wire-visible CALLERROR.
func gateErr(command string, profile model.FeatureProfile) error {
	return ocpp.NewError(ocppj.NotSupported, fmt.Sprintf("%s requires feature profile %s", command, profile), "")
}

func badConnector(connectorID int) error {
	return ocpp.NewError(ocppj.PropertyConstraintViolation, fmt.Sprintf("unknown connector %d", connectorID), "")
}

// --- Core profile ---

func (h *Handler) OnChangeAvailability(request *core.ChangeAvailabilityRequest) (*core.ChangeAvailabilityConfirmation, error) {
	if !h.gate.Check(model.ProfileCore, core.ChangeAvailabilityFeatureName) {
		return nil, gateErr(core.ChangeAvailabilityFeatureName, model.ProfileCore)
	}
	if h.station.Connector(request.ConnectorId) == nil {
		return nil, badConnector(request.ConnectorId)
	}
	ids := []int{request.ConnectorId}
	if request.ConnectorId == 0 {
		// Connector 0 addresses the station and every physical connector.
		ids = ids[:0]
		for id := 0; id <= h.station.ConnectorCount(); id++ {
			ids = append(ids, id)
		}
	}
	status := h.coordinator.ChangeAvailability(ids, request.Type)
	return core.NewChangeAvailabilityConfirmation(status), nil
}

func (h *Handler) OnChangeConfiguration(request *core.ChangeConfigurationRequest) (*core.ChangeConfigurationConfirmation, error) {
	if !h.gate.Check(model.ProfileCore, core.ChangeConfigurationFeatureName) {
		return nil, gateErr(core.ChangeConfigurationFeatureName, model.ProfileCore)
	}
	cfg := h.station.Configuration()
	if _, ok := cfg.Get(request.Key); !ok {
		return core.NewChangeConfigurationConfirmation(core.ConfigurationStatusNotSupported), nil
	}
	if cfg.Readonly(request.Key) || !cfg.Set(request.Key, request.Value) {
		return core.NewChangeConfigurationConfirmation(core.ConfigurationStatusRejected), nil
	}
	return core.NewChangeConfigurationConfirmation(core.ConfigurationStatusAccepted), nil
}

func (h *Handler) OnClearCache(request *core.ClearCacheRequest) (*core.ClearCacheConfirmation, error) {
	if !h.gate.Check(model.ProfileCore, core.ClearCacheFeatureName) {
		return nil, gateErr(core.ClearCacheFeatureName, model.ProfileCore)
	}
	return core.NewClearCacheConfirmation(core.ClearCacheStatusAccepted), nil
}

func (h *Handler) OnDataTransfer(request *core.DataTransferRequest) (*core.DataTransferConfirmation, error) {
	if !h.gate.Check(model.ProfileCore, core.DataTransferFeatureName) {
		return nil, gateErr(core.DataTransferFeatureName, model.ProfileCore)
	}
	if request.VendorId != h.station.Info.ChargePointVendor {
		return core.NewDataTransferConfirmation(core.DataTransferStatusUnknownVendorId), nil
	}
	return core.NewDataTransferConfirmation(core.DataTransferStatusAccepted), nil
}

func (h *Handler) OnGetConfiguration(request *core.GetConfigurationRequest) (*core.GetConfigurationConfirmation, error) {
	if !h.gate.Check(model.ProfileCore, core.GetConfigurationFeatureName) {
		return nil, gateErr(core.GetConfigurationFeatureName, model.ProfileCore)
	}
	cfg := h.station.Configuration()
	keys := request.Key
	if len(keys) == 0 {
		keys = cfg.Keys()
	}
	var known []core.ConfigurationKey
	var unknown []string
	for _, key := range keys {
		value, ok := cfg.Get(key)
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		v := value
		known = append(known, core.ConfigurationKey{Key: key, Readonly: cfg.Readonly(key), Value: &v})
	}
	conf := core.NewGetConfigurationConfirmation(known)
	conf.UnknownKey = unknown
	return conf, nil
}

func (h *Handler) OnRemoteStartTransaction(request *core.RemoteStartTransactionRequest) (*core.RemoteStartTransactionConfirmation, error) {
	if !h.gate.Check(model.ProfileCore, core.RemoteStartTransactionFeatureName) {
		return nil, gateErr(core.RemoteStartTransactionFeatureName, model.ProfileCore)
	}
	connectorID := 0
	if request.ConnectorId != nil {
		connectorID = *request.ConnectorId
	}
	status := h.coordinator.RemoteStart(connectorID, request.IdTag, request.ChargingProfile)
	return core.NewRemoteStartTransactionConfirmation(status), nil
}

func (h *Handler) OnRemoteStopTransaction(request *core.RemoteStopTransactionRequest) (*core.RemoteStopTransactionConfirmation, error) {
	if !h.gate.Check(model.ProfileCore, core.RemoteStopTransactionFeatureName) {
		return nil, gateErr(core.RemoteStopTransactionFeatureName, model.ProfileCore)
	}
	status := h.coordinator.RemoteStop(request.TransactionId)
	return core.NewRemoteStopTransactionConfirmation(status), nil
}

func (h *Handler) OnReset(request *core.ResetRequest) (*core.ResetConfirmation, error) {
	if !h.gate.Check(model.ProfileCore, core.ResetFeatureName) {
		return nil, gateErr(core.ResetFeatureName, model.ProfileCore)
	}
	h.log.Infof("%s reset requested", request.Type)
	return core.NewResetConfirmation(core.ResetStatusAccepted), nil
}

func (h *Handler) OnUnlockConnector(request *core.UnlockConnectorRequest) (*core.UnlockConnectorConfirmation, error) {
	if !h.gate.Check(model.ProfileCore, core.UnlockConnectorFeatureName) {
		return nil, gateErr(core.UnlockConnectorFeatureName, model.ProfileCore)
	}
	if h.coordinator.UnlockConnector(request.ConnectorId) {
		return core.NewUnlockConnectorConfirmation(core.UnlockStatusUnlocked), nil
	}
	return core.NewUnlockConnectorConfirmation(core.UnlockStatusNotSupported), nil
}

// --- SmartCharging profile ---

func (h *Handler) OnSetChargingProfile(request *smartcharging.SetChargingProfileRequest) (*smartcharging.SetChargingProfileConfirmation, error) {
	if !h.gate.Check(model.ProfileSmartCharging, smartcharging.SetChargingProfileFeatureName) {
		return nil, gateErr(smartcharging.SetChargingProfileFeatureName, model.ProfileSmartCharging)
	}
	conn := h.station.Connector(request.ConnectorId)
	if conn == nil {
		return nil, badConnector(request.ConnectorId)
	}
	profile := request.ChargingProfile
	if profile == nil {
		return smartcharging.NewSetChargingProfileConfirmation(smartcharging.ChargingProfileStatusRejected), nil
	}
	switch profile.ChargingProfilePurpose {
	case types.ChargingProfilePurposeChargePointMaxProfile:
		if request.ConnectorId != 0 {
			return smartcharging.NewSetChargingProfileConfirmation(smartcharging.ChargingProfileStatusRejected), nil
		}
	case types.ChargingProfilePurposeTxProfile:
		if request.ConnectorId == 0 || !conn.TransactionStarted {
			return smartcharging.NewSetChargingProfileConfirmation(smartcharging.ChargingProfileStatusRejected), nil
		}
	}
	sc.SetChargingProfile(conn, *profile)
	return smartcharging.NewSetChargingProfileConfirmation(smartcharging.ChargingProfileStatusAccepted), nil
}

func (h *Handler) OnClearChargingProfile(request *smartcharging.ClearChargingProfileRequest) (*smartcharging.ClearChargingProfileConfirmation, error) {
	if !h.gate.Check(model.ProfileSmartCharging, smartcharging.ClearChargingProfileFeatureName) {
		return nil, gateErr(smartcharging.ClearChargingProfileFeatureName, model.ProfileSmartCharging)
	}
	ids := make([]int, 0, h.station.ConnectorCount()+1)
	if request.ConnectorId != nil {
		if h.station.Connector(*request.ConnectorId) == nil {
			return nil, badConnector(*request.ConnectorId)
		}
		ids = append(ids, *request.ConnectorId)
	} else {
		for id := 0; id <= h.station.ConnectorCount(); id++ {
			ids = append(ids, id)
		}
	}
	cleared := false
	for _, id := range ids {
		if sc.ClearChargingProfiles(h.station.Connector(id), request.Id, request.ChargingProfilePurpose, request.StackLevel) {
			cleared = true
		}
	}
	if cleared {
		return smartcharging.NewClearChargingProfileConfirmation(smartcharging.ClearChargingProfileStatusAccepted), nil
	}
	return smartcharging.NewClearChargingProfileConfirmation(smartcharging.ClearChargingProfileStatusUnknown), nil
}

func (h *Handler) OnGetCompositeSchedule(request *smartcharging.GetCompositeScheduleRequest) (*smartcharging.GetCompositeScheduleConfirmation, error) {
	if !h.gate.Check(model.ProfileSmartCharging, smartcharging.GetCompositeScheduleFeatureName) {
		return nil, gateErr(smartcharging.GetCompositeScheduleFeatureName, model.ProfileSmartCharging)
	}
	conn := h.station.Connector(request.ConnectorId)
	if conn == nil {
		return nil, badConnector(request.ConnectorId)
	}
	now := h.clock.Now()
	schedule := sc.CompositeSchedule(conn, h.station.Connector(0), now, time.Duration(request.Duration)*time.Second)
	if schedule == nil {
		return smartcharging.NewGetCompositeScheduleConfirmation(smartcharging.GetCompositeScheduleStatusRejected), nil
	}
	conf := smartcharging.NewGetCompositeScheduleConfirmation(smartcharging.GetCompositeScheduleStatusAccepted)
	id := request.ConnectorId
	conf.ConnectorId = &id
	conf.ScheduleStart = schedule.StartSchedule
	conf.ChargingSchedule = schedule
	return conf, nil
}

// --- Reservation profile ---

func (h *Handler) OnReserveNow(request *reservation.ReserveNowRequest) (*reservation.ReserveNowConfirmation, error) {
	if !h.gate.Check(model.ProfileReservation, reservation.ReserveNowFeatureName) {
		return nil, gateErr(reservation.ReserveNowFeatureName, model.ProfileReservation)
	}
	if h.station.Connector(request.ConnectorId) == nil {
		return nil, badConnector(request.ConnectorId)
	}
	expiry := time.Time{}
	if request.ExpiryDate != nil {
		expiry = request.ExpiryDate.Time
	}
	status := h.coordinator.ReserveNow(request.ReservationId, request.ConnectorId, request.IdTag, request.ParentIdTag, expiry)
	return reservation.NewReserveNowConfirmation(status), nil
}

func (h *Handler) OnCancelReservation(request *reservation.CancelReservationRequest) (*reservation.CancelReservationConfirmation, error) {
	if !h.gate.Check(model.ProfileReservation, reservation.CancelReservationFeatureName) {
		return nil, gateErr(reservation.CancelReservationFeatureName, model.ProfileReservation)
	}
	if h.coordinator.CancelReservation(request.ReservationId) {
		return reservation.NewCancelReservationConfirmation(reservation.CancelReservationStatusAccepted), nil
	}
	return reservation.NewCancelReservationConfirmation(reservation.CancelReservationStatusRejected), nil
}

// --- RemoteTrigger profile ---

func (h *Handler) OnTriggerMessage(request *remotetrigger.TriggerMessageRequest) (*remotetrigger.TriggerMessageConfirmation, error) {
	if !h.gate.Check(model.ProfileRemoteTrigger, remotetrigger.TriggerMessageFeatureName) {
		return nil, gateErr(remotetrigger.TriggerMessageFeatureName, model.ProfileRemoteTrigger)
	}
	connectorID := 0
	if request.ConnectorId != nil {
		connectorID = *request.ConnectorId
	}
	switch string(request.RequestedMessage) {
	case core.BootNotificationFeatureName:
		h.triggers.TriggerBootNotification()
	case core.HeartbeatFeatureName:
		h.triggers.TriggerHeartbeat()
	case core.StatusNotificationFeatureName:
		h.triggers.TriggerStatusNotification(connectorID)
	case core.MeterValuesFeatureName:
		h.triggers.TriggerMeterValues(connectorID)
	case firmware.DiagnosticsStatusNotificationFeatureName:
		h.triggers.TriggerDiagnosticsStatusNotification()
	case firmware.FirmwareStatusNotificationFeatureName:
		h.triggers.TriggerFirmwareStatusNotification()
	default:
		return remotetrigger.NewTriggerMessageConfirmation(remotetrigger.TriggerMessageStatusNotImplemented), nil
	}
	return remotetrigger.NewTriggerMessageConfirmation(remotetrigger.TriggerMessageStatusAccepted), nil
}

// --- LocalAuthList profile ---

func (h *Handler) OnGetLocalListVersion(request *localauth.GetLocalListVersionRequest) (*localauth.GetLocalListVersionConfirmation, error) {
	if !h.gate.Check(model.ProfileLocalAuthListManagement, localauth.GetLocalListVersionFeatureName) {
		return nil, gateErr(localauth.GetLocalListVersionFeatureName, model.ProfileLocalAuthListManagement)
	}
	return localauth.NewGetLocalListVersionConfirmation(h.localListVersion), nil
}

func (h *Handler) OnSendLocalList(request *localauth.SendLocalListRequest) (*localauth.SendLocalListConfirmation, error) {
	if !h.gate.Check(model.ProfileLocalAuthListManagement, localauth.SendLocalListFeatureName) {
		return nil, gateErr(localauth.SendLocalListFeatureName, model.ProfileLocalAuthListManagement)
	}
	h.localListVersion = request.ListVersion
	return localauth.NewSendLocalListConfirmation(localauth.UpdateStatusAccepted), nil
}

// --- Firmware profile ---

func (h *Handler) OnGetDiagnostics(request *firmware.GetDiagnosticsRequest) (*firmware.GetDiagnosticsConfirmation, error) {
	if !h.gate.Check(model.ProfileFirmwareManagement, firmware.GetDiagnosticsFeatureName) {
		return nil, gateErr(firmware.GetDiagnosticsFeatureName, model.ProfileFirmwareManagement)
	}
	h.triggers.TriggerDiagnosticsStatusNotification()
	return firmware.NewGetDiagnosticsConfirmation(), nil
}

func (h *Handler) OnUpdateFirmware(request *firmware.UpdateFirmwareRequest) (*firmware.UpdateFirmwareConfirmation, error) {
	if !h.gate.Check(model.ProfileFirmwareManagement, firmware.UpdateFirmwareFeatureName) {
		return nil, gateErr(firmware.UpdateFirmwareFeatureName, model.ProfileFirmwareManagement)
	}
	h.triggers.TriggerFirmwareStatusNotification()
	return firmware.NewUpdateFirmwareConfirmation(), nil
}
