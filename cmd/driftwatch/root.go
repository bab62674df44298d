package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "driftwatch",
	Short: "DriftWatch telemetry anomaly detection",
	Long: `DriftWatch watches telemetry streams for anomalous sensor, transaction
and traffic behavior, raises alerts for operators and serves the
dashboard API.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}
