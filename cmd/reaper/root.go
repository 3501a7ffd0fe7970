package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skyfell/reaper/config"
	_ "github.com/skyfell/reaper/providers/aws" // register the aws provider
)

var (
	version = "0.1.0"

	cfgPath string

	rootCmd = &cobra.Command{
		Use:   "reaper",
		Short: "Scheduled destruction of AWS resources",
		Long: `Reaper - scheduled destruction of AWS resources

Reaper sweeps configured regions, enumerates resources across supported
services, filters them by include/exclude sets, protective tags, and
age, then deletes what remains in dependency-safe order.

Aimed at sandbox and development accounts that must not accumulate
forgotten infrastructure. Point it at production at your own peril.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Reaper {{.Version}}
`)
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (environment variables apply when unset)")
}

// loadConfig reads the YAML file when --config is given, otherwise the
// environment.
func loadConfig() (config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return config.Config{}, err
	}
	return *cfg, nil
}
