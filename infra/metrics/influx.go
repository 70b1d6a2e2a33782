package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/wattplan/wattplan/core/metrics"
	"github.com/wattplan/wattplan/infra/logger"
)

// InfluxSink writes planning results to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB
// endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	base := strings.TrimSuffix(cfg.InfluxURL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns
// a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordPlan writes one summary point for the run and one point per
// interval decision.
func (s *InfluxSink) RecordPlan(ev coremetrics.PlanEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := ev.Result
	summary := write.NewPointWithMeasurement("plan_summary").
		AddTag("plan_id", ev.PlanID).
		AddTag("feasible", strconv.FormatBool(res.Feasible)).
		AddTag("component", "planner").
		AddField("total_cost", round3(res.TotalCost)).
		AddField("baseline_cost", round3(res.BaselineCost)).
		AddField("savings", round3(res.Savings)).
		AddField("final_battery_kwh", round3(res.FinalBattery)).
		AddField("slots", len(res.Decisions)).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	if res.Infeasibility != "" {
		summary.AddField("infeasibility", res.Infeasibility)
	}
	if err := s.writeAPI.WritePoint(ctx, summary); err != nil {
		return err
	}

	for _, d := range res.Decisions {
		p := write.NewPointWithMeasurement("interval_decision").
			AddTag("plan_id", ev.PlanID).
			AddTag("mode", d.Mode.String()).
			AddTag("reason", d.Reason).
			AddTag("component", "planner").
			AddField("battery_end_kwh", round3(d.BatteryEnd)).
			AddField("grid_import_kwh", round3(d.GridImport)).
			AddField("grid_export_kwh", round3(d.GridExport)).
			AddField("cost", round3(d.Cost)).
			SetTime(d.Start)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
