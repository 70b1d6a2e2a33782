package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wattplan/wattplan/config"
	coremetrics "github.com/wattplan/wattplan/core/metrics"
	"github.com/wattplan/wattplan/core/planner"
	"github.com/wattplan/wattplan/infra/logger"
	"github.com/wattplan/wattplan/infra/metrics"
	"github.com/wattplan/wattplan/infra/mqtt"
	"github.com/wattplan/wattplan/internal/eventbus"
)

// Service orchestrates periodic planning runs and fans results out to the
// metrics sinks and the MQTT publisher. It keeps at most one planning
// computation in flight.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	strategy  *planner.HybridStrategy
	guard     *planner.ModeGuard
	sink      coremetrics.MetricsSink
	publisher *mqtt.PlanPublisher
	bus       *eventbus.Bus[coremetrics.PlanEvent]

	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
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

	var publisher *mqtt.PlanPublisher
	if cfg.MQTT.Enabled {
		p, err := mqtt.NewPlanPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		publisher = p
	}

	return &Service{
		cfg:         cfg,
		log:         logg,
		strategy:    planner.NewHybridStrategy(cfg.Simulator, cfg.Planner, logger.New("planner")),
		guard:       planner.NewModeGuard(cfg.Guard.LockMinutes, logger.New("mode-guard")),
		sink:        sink,
		publisher:   publisher,
		bus:         eventbus.New[coremetrics.PlanEvent](),
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

// Run starts the replanning loop and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	sub := s.bus.Subscribe()
	go s.consume(sub)

	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	interval := time.Duration(s.cfg.Forecast.ReplanMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runOnce()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce()
		}
	}
}

// runOnce executes one planning cycle. Failures are logged and the next
// tick retries; the planner itself never fails for data-quality reasons.
func (s *Service) runOnce() {
	forecast, err := LoadForecast(s.cfg.Forecast.Path, s.log)
	if err != nil {
		s.log.Errorf("forecast load: %v", err)
		return
	}
	started := time.Now()
	result := s.strategy.Plan(forecast.Prices, forecast.SolarKWh, forecast.LoadKWh, forecast.BatteryKWh, forecast.Balancing)
	result, notes := s.guard.Apply(result, forecast.Prices, forecast.SolarKWh, forecast.LoadKWh, forecast.BatteryKWh, s.strategy)

	ev := coremetrics.PlanEvent{
		PlanID:     uuid.NewString(),
		Time:       time.Now(),
		Duration:   time.Since(started),
		Result:     result,
		GuardNotes: notes,
	}
	if !result.Feasible {
		s.log.Warnf("plan %s infeasible: %s", ev.PlanID, result.Infeasibility)
	}
	s.bus.Publish(ev)
}

func (s *Service) consume(sub <-chan coremetrics.PlanEvent) {
	for ev := range sub {
		if err := s.sink.RecordPlan(ev); err != nil {
			s.log.Errorf("record plan: %v", err)
		}
		if s.publisher != nil {
			if err := s.publisher.PublishPlan(ev); err != nil {
				s.log.Errorf("publish plan: %v", err)
			}
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	return s.sink.Close()
}
