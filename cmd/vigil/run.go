package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vigil-edr/vigil/internal/baseline"
	"github.com/vigil-edr/vigil/internal/config"
	"github.com/vigil-edr/vigil/internal/detection"
	"github.com/vigil-edr/vigil/internal/pipeline"
	"github.com/vigil-edr/vigil/internal/probes"
	"github.com/vigil-edr/vigil/internal/response"
	"github.com/vigil-edr/vigil/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the detection and response pipeline",
	Long:  `Start the event bus, detection engine, and response engine, ingesting events from an event source until interrupted.`,
	RunE:  runRun,
}

func init() {
	runCmd.Flags().String("events", "", "path to a JSONL event file (default: stdin)")
	runCmd.Flags().Bool("skip-baseline", false, "skip the host baseline scan at startup")
}

func runRun(cmd *cobra.Command, args []string) error {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	v := viper.New()
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return configError{err}
	}

	sink, err := telemetry.New(cfg.LogDir, cfg.RetentionDays)
	if err != nil {
		return runtimeFatalError{fmt.Errorf("initialize telemetry sink: %w", err)}
	}
	if err := sink.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn().Err(err).Msg("failed to register telemetry metrics, continuing without them")
	}

	correlationWindow := time.Duration(cfg.CorrelationWindowSeconds) * time.Second
	correlationTick := time.Duration(cfg.CorrelationTickSeconds) * time.Second

	engine := detection.New(cfg.ThreatThreshold, correlationWindow)
	if err := engine.Rules.LoadSupplementary(cfg.RulesPath); err != nil {
		log.Warn().Err(err).Msg("failed to load supplementary rules, continuing with built-ins only")
	}

	var enforcer response.Enforcer = response.ShellEnforcer{}
	if cfg.ResponseEndpoint != "" {
		enforcer = response.NewHTTPEnforcer(cfg.ResponseEndpoint)
	}
	respEngine := response.NewEngine(cfg.AutoResponseEnabled, cfg.ThreatThreshold, enforcer)
	respEngine.NotifyForensics = func(threatID string) {
		log.Warn().Str("threat_id", threatID).Msg("threat referred to forensic capture")
	}

	skipBaseline, _ := cmd.Flags().GetBool("skip-baseline")
	if !skipBaseline {
		runBaselineAtBootstrap(cfg, engine)
	}

	eventsPath, _ := cmd.Flags().GetString("events")
	source, closeSource, err := eventSource(eventsPath)
	if err != nil {
		return err
	}
	defer closeSource()

	p := pipeline.New(engine, respEngine, sink, correlationTick, source)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().Msg("vigil pipeline started")
	p.Run(ctx)
	log.Info().Msg("vigil pipeline stopped cleanly")
	return nil
}

func eventSource(path string) (probes.Source, func(), error) {
	if path == "" {
		return probes.NewJSONLSource("stdin", os.Stdin), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open event file %s: %w", path, err)
	}
	return probes.NewJSONLSource(path, f), func() { f.Close() }, nil
}

func runBaselineAtBootstrap(cfg config.Config, engine *detection.Engine) {
	baselineCfg := baseline.DefaultConfig()
	baselineCfg.RulesPath = cfg.BaselineRulesPath
	scanner, err := baseline.NewScanner(baselineCfg)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize baseline scanner, skipping bootstrap scan")
		return
	}
	for _, finding := range scanner.ScanHost() {
		ev := baseline.ToEvent(finding)
		if threat, emit := engine.ProcessEvent(ev); emit {
			log.Warn().Str("rule_id", finding.RuleID).Str("threat_id", threat.ID).Msg("baseline finding crossed detection threshold")
		}
	}
}
