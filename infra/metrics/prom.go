package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/wattplan/wattplan/core/metrics"
	"github.com/wattplan/wattplan/core/model"
)

// PromSink records planning results in Prometheus metrics.
type PromSink struct {
	plans        *prometheus.CounterVec
	cost         prometheus.Gauge
	baseline     prometheus.Gauge
	savings      prometheus.Gauge
	finalBattery prometheus.Gauge
	feasible     prometheus.Gauge
	modeSlots    *prometheus.GaugeVec
	duration     prometheus.Histogram
}

// NewPromSink registers planning metrics on the default Prometheus
// registerer. The Prometheus server is started separately.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plan_runs_total",
			Help: "Total number of planning runs",
		}, []string{"feasible"}),
		cost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plan_total_cost",
			Help: "Net grid cost of the latest plan",
		}),
		baseline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plan_baseline_cost",
			Help: "Cost of the latest plan if every slot ran the default mode",
		}),
		savings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plan_savings",
			Help: "Baseline cost minus planned cost for the latest plan",
		}),
		finalBattery: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plan_final_battery_kwh",
			Help: "Battery level at the end of the latest planning horizon",
		}),
		feasible: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plan_feasible",
			Help: "1 when the latest plan satisfies all constraints",
		}),
		modeSlots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plan_mode_slots",
			Help: "Slot count per mode in the latest plan",
		}, []string{"mode"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plan_duration_seconds",
			Help:    "Time spent computing a plan",
			Buckets: prometheus.DefBuckets,
		}),
	}
	collectors := []prometheus.Collector{
		s.plans, s.cost, s.baseline, s.savings, s.finalBattery, s.feasible, s.modeSlots, s.duration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordPlan publishes the aggregates of one planning run.
func (s *PromSink) RecordPlan(ev coremetrics.PlanEvent) error {
	res := ev.Result
	s.plans.WithLabelValues(strconv.FormatBool(res.Feasible)).Inc()
	s.cost.Set(res.TotalCost)
	s.baseline.Set(res.BaselineCost)
	s.savings.Set(res.Savings)
	s.finalBattery.Set(res.FinalBattery)
	if res.Feasible {
		s.feasible.Set(1)
	} else {
		s.feasible.Set(0)
	}
	for _, m := range model.Modes {
		s.modeSlots.WithLabelValues(m.String()).Set(float64(res.ModeCounts[m]))
	}
	s.duration.Observe(ev.Duration.Seconds())
	return nil
}

// Close implements MetricsSink.
func (s *PromSink) Close() error { return nil }

// StartPromServer starts an HTTP server exposing Prometheus metrics on the
// given address. The server runs until the provided context is canceled.
// A dedicated ServeMux is used to avoid interfering with other handlers.
func StartPromServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
