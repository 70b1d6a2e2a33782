package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wattplan/wattplan/app"
	"github.com/wattplan/wattplan/config"
	"github.com/wattplan/wattplan/core/planner"
	"github.com/wattplan/wattplan/infra/logger"
	"github.com/wattplan/wattplan/pkg/export"
)

var (
	planForecast string
	planFormat   string
	planOutput   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute a one-shot plan from a forecast file",
	RunE:  planOnce,
}

func init() {
	planCmd.Flags().StringVarP(&planForecast, "forecast", "f", "", "forecast file (defaults to the configured path)")
	planCmd.Flags().StringVar(&planFormat, "format", "json", "output format: json or csv")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "output file (defaults to stdout)")
	rootCmd.AddCommand(planCmd)
}

func planOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := planForecast
	if path == "" {
		path = cfg.Forecast.Path
	}
	log := logger.New("plan-command")
	forecast, err := app.LoadForecast(path, log)
	if err != nil {
		return err
	}

	strategy := planner.NewHybridStrategy(cfg.Simulator, cfg.Planner, log)
	result := strategy.Plan(forecast.Prices, forecast.SolarKWh, forecast.LoadKWh, forecast.BatteryKWh, forecast.Balancing)
	if !result.Feasible {
		log.Warnf("plan infeasible: %s", result.Infeasibility)
	}

	var w io.Writer = os.Stdout
	if planOutput != "" {
		f, err := os.Create(planOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	switch planFormat {
	case "json":
		return export.WriteJSON(w, result)
	case "csv":
		return export.WriteCSV(w, result.Decisions)
	default:
		return fmt.Errorf("unsupported format: %s", planFormat)
	}
}
