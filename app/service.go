package app

import (
	"context"
	"fmt"
	"time"

	ocpp16 "github.com/lorenzodonini/ocpp-go/ocpp1.6"

	"github.com/kilianp07/csim/config"
	"github.com/kilianp07/csim/core/meter"
	coremetrics "github.com/kilianp07/csim/core/metrics"
	"github.com/kilianp07/csim/core/model"
	"github.com/kilianp07/csim/core/session"
	"github.com/kilianp07/csim/core/station"
	"github.com/kilianp07/csim/infra/logger"
	"github.com/kilianp07/csim/infra/metrics"
	ocppinfra "github.com/kilianp07/csim/infra/ocpp"
	"github.com/kilianp07/csim/infra/persistence"
	"github.com/kilianp07/csim/internal/eventbus"
)

// Service assembles and runs the station fleet. Stations share nothing
// mutable: each runs its own task against its own ledger.
type Service struct {
	runners        []*Runner
	supervisionURL string
	bus            eventbus.EventBus
	log            logger.Logger
	promEnabled    bool
	promPort       string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	clock := model.WallClock{}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir = "state"
	}
	store, err := persistence.NewFileStore(stateDir)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	svc := &Service{
		supervisionURL: cfg.SupervisionURL,
		bus:            bus,
		log:            logg,
		promEnabled:    cfg.Metrics.PrometheusEnabled,
		promPort:       cfg.Metrics.PrometheusPort,
	}
	for _, entry := range cfg.Stations {
		tmpl, err := config.LoadTemplate(entry.Template)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", entry.Template, err)
		}
		for i := 1; i <= entry.Count; i++ {
			id := fmt.Sprintf("%s-%04d", tmpl.Name, i)
			svc.runners = append(svc.runners, buildStation(id, tmpl, sink, store, bus, clock))
		}
	}
	return svc, nil
}

// buildStation wires one station: ledger, gate, synthesizer, coordinator,
// transport and loop.
func buildStation(id string, tmpl *model.Template, sink coremetrics.MetricsSink, store *persistence.FileStore, bus eventbus.EventBus, clock model.Clock) *Runner {
	log := logger.New(id)
	info := tmpl.StationInfo(id)
	st := station.New(info, tmpl, tmpl.NumberOfConnectors, log, clock)
	for connectorID := 1; connectorID <= st.ConnectorCount(); connectorID++ {
		st.Connector(connectorID).EnergyActiveImportRegister = store.LoadEnergyRegister(id, connectorID)
	}

	cp := ocpp16.NewChargePoint(id, nil, nil)
	client := ocppinfra.NewChargePointClient(id, cp, sink, log, clock)
	syn := meter.New(st, log, clock, model.NewRand())
	coordinator := session.New(st, syn, client, store, log, clock)
	gate := station.NewFeatureGate(info, log)

	runner := NewRunner(st, client, syn, sink, bus, log, clock,
		time.Duration(tmpl.HeartbeatIntervalSeconds)*time.Second,
		time.Duration(tmpl.MeterValueSampleIntervalSeconds)*time.Second)

	handler := ocppinfra.NewHandler(st, gate, coordinator, runner, clock, log)
	cp.SetCoreHandler(handler)
	cp.SetSmartChargingHandler(handler)
	cp.SetReservationHandler(handler)
	cp.SetRemoteTriggerHandler(handler)
	cp.SetLocalAuthListHandler(handler)
	cp.SetFirmwareManagementHandler(handler)
	return runner
}

// Run starts the fleet and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, ":"+s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	for _, r := range s.runners {
		runner := r
		go func() {
			if err := runner.Run(ctx, s.supervisionURL); err != nil {
				s.log.Errorf("station %s: %v", runner.station.Info.ID, err)
			}
		}()
	}
	<-ctx.Done()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	return nil
}
