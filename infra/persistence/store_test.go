package persistence

import (
	"testing"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"

	"github.com/kilianp07/csim/core/model"
)

func TestSaveAndLoadConnectorState(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	c := model.NewConnector()
	c.Status = core.ChargePointStatusCharging
	c.TransactionStarted = true
	c.TransactionID = 42
	c.IdTag = "TAG-1"
	c.EnergyActiveImportRegister = 1234.56

	if err := store.SaveConnectorState("cs-0001", 1, c); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := store.LoadEnergyRegister("cs-0001", 1); got != 1234.56 {
		t.Fatalf("register %v, want 1234.56", got)
	}
	// Upserting a second connector keeps the first.
	if err := store.SaveConnectorState("cs-0001", 2, model.NewConnector()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := store.LoadEnergyRegister("cs-0001", 1); got != 1234.56 {
		t.Fatalf("register lost on upsert: %v", got)
	}
}

func TestLoadEnergyRegisterMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if got := store.LoadEnergyRegister("cs-none", 1); got != 0 {
		t.Fatalf("missing state must read 0, got %v", got)
	}
}
