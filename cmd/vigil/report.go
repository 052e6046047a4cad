package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vigil-edr/vigil/internal/config"
	"github.com/vigil-edr/vigil/internal/reporting"
	"github.com/vigil-edr/vigil/internal/telemetry"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate an after-action report from persisted threats",
	Long:  `Build a markdown or JSON report summarizing the threats recorded by the telemetry sink within a time range; only the 1000 most recent threats are considered.`,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().String("from", "", "start of the report range (RFC3339, default 24h ago)")
	reportCmd.Flags().String("to", "", "end of the report range (RFC3339, default now)")
	reportCmd.Flags().StringP("format", "f", "markdown", "report format: markdown or json")
	reportCmd.Flags().StringP("output", "o", "./reports", "output directory")
}

func runReport(cmd *cobra.Command, args []string) error {
	v := viper.New()
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return configError{err}
	}

	to := time.Now()
	if s, _ := cmd.Flags().GetString("to"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return configError{fmt.Errorf("parse --to: %w", err)}
		}
		to = parsed
	}
	from := to.Add(-24 * time.Hour)
	if s, _ := cmd.Flags().GetString("from"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return configError{fmt.Errorf("parse --from: %w", err)}
		}
		from = parsed
	}

	sink, err := telemetry.New(cfg.LogDir, cfg.RetentionDays)
	if err != nil {
		return runtimeFatalError{fmt.Errorf("initialize telemetry sink: %w", err)}
	}

	threats := sink.GetRecentThreats(telemetryMaxReportThreats)
	report := reporting.Build(fmt.Sprintf("report-%d", to.Unix()), threats, reporting.TimeRange{From: from, To: to})

	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	if err := os.MkdirAll(output, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	generator := reporting.NewGenerator(output, format)
	if err := generator.Generate(report); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	fmt.Printf("Report generated: %d threats, overall risk %s\n", report.Summary.TotalThreats, report.Summary.OverallRisk)
	return nil
}

// telemetryMaxReportThreats bounds how many recent threats a report
// considers; the sink itself never retains more than this many in memory.
const telemetryMaxReportThreats = 1000
