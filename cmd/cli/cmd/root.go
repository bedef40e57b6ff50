// Package cmd provides the CLI commands for snowops.
package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"snowops/internal/config"
	"snowops/internal/errors"
	"snowops/internal/logging"
)

var (
	cfgFile     string
	verbose     bool
	days        int
	outputFile  string
	warehouse   string
	detailed    bool
	threshold   float64
	metricsFile string
	noColor     bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "snowops",
	Short: "Report on, tune and reconcile Snowflake warehouses",
	Long: `snowops reads account-usage metadata to recommend warehouse sizes,
suspend settings, clustering keys and cost attribution, and reconciles
declared warehouse and resource monitor configuration against live state.

Examples:
  snowops rightsize --days 14
  snowops idle --output idle.csv
  snowops anomalies --threshold 150 --budget 500
  snowops usage --days 7
  snowops tags --resource-type database
  snowops plan ./warehouses
  snowops apply ./warehouses --auto-approve`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute runs the CLI
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file, YAML or JSON (default is $HOME/.snowops.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	flags.IntVar(&days, "days", 30, "lookback window in days")
	flags.StringVarP(&outputFile, "output", "o", "", "export results to a .csv or .json file")
	flags.StringVarP(&warehouse, "warehouse", "w", "", "restrict reports to one warehouse")
	flags.BoolVar(&detailed, "detailed", false, "print per-row rationale")
	flags.Float64Var(&threshold, "threshold", 0, "minimum reported spike, in percent of baseline")
	flags.StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics to this textfile")
	flags.BoolVar(&noColor, "no-color", false, "disable ANSI colors")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.Wrap(errors.TypeConfig, "invalid flags for "+cmd.Name(), err)
	})

	rootCmd.AddCommand(rightsizeCmd)
	rootCmd.AddCommand(idleCmd)
	rootCmd.AddCommand(scalingCmd)
	rootCmd.AddCommand(anomaliesCmd)
	rootCmd.AddCommand(attributionCmd)
	rootCmd.AddCommand(clusteringCmd)
	rootCmd.AddCommand(slowQueriesCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(versionCmd)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".snowops.yaml")
}

// initConfig layers the config file, then the environment, then flags.
func initConfig(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = defaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("days") || cfg.Analysis.Days == 0 {
		cfg.Analysis.Days = days
	}
	if flags.Changed("threshold") {
		cfg.Analysis.SpikeThreshold = threshold
	}
	if detailed {
		cfg.Output.Detailed = true
	}
	if noColor {
		cfg.Output.Color = false
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	config.Set(cfg)

	return logging.Initialize(cfg.Logging)
}
