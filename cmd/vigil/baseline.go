package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vigil-edr/vigil/internal/baseline"
	"github.com/vigil-edr/vigil/internal/config"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Run a one-shot host configuration compliance scan",
	Long:  `Scan sshd configuration, sudoers/shadow permissions, and world-writable files for security misconfigurations, plus any custom rules configured.`,
	RunE:  runBaseline,
}

func init() {
	baselineCmd.Flags().String("rules", "", "directory of custom baseline rule YAML files")
	baselineCmd.Flags().Bool("json", false, "emit findings as JSON instead of a human-readable list")
}

func runBaseline(cmd *cobra.Command, args []string) error {
	v := viper.New()
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return configError{err}
	}

	rulesPath, _ := cmd.Flags().GetString("rules")
	if rulesPath == "" {
		rulesPath = cfg.BaselineRulesPath
	}

	baselineCfg := baseline.DefaultConfig()
	baselineCfg.RulesPath = rulesPath
	scanner, err := baseline.NewScanner(baselineCfg)
	if err != nil {
		return fmt.Errorf("initialize baseline scanner: %w", err)
	}

	findings := scanner.ScanHost()

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		data, err := json.MarshalIndent(findings, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal findings: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(findings) == 0 {
		fmt.Println("No baseline violations found.")
		return nil
	}
	for _, f := range findings {
		fmt.Printf("[%s] %s: %s (%s)\n", f.Severity, f.RuleID, f.Message, f.Resource)
	}
	return nil
}
