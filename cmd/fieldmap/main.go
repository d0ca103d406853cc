package main

import (
	"fmt"
	"os"

	"github.com/cyclopcam/logs"
	"github.com/spf13/cobra"

	"github.com/1F47E/fieldmap/pkg/config"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "fieldmap",
	Short: "Reconstruct a row-crop field map from geo-tagged detections",
	Long: `Merges detections of plants, gaps and printed codes seen in overlapping images
into one field model: rows, plant groups and numbered items.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(reconstructCmd, inspectCmd, exportPostGISCmd, benchmarkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// quietLog drops debug lines unless --verbose is set
type quietLog struct {
	logs.Log
}

func (quietLog) Debugf(format string, args ...any) {}

// silentLog keeps only errors, for concurrent runs that would flood the output
type silentLog struct {
	logs.Log
}

func (silentLog) Debugf(format string, args ...any) {}
func (silentLog) Infof(format string, args ...any)  {}
func (silentLog) Warnf(format string, args ...any)  {}

func newLogger() (logs.Log, error) {
	logger, err := logs.NewLog()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if verbose {
		return logger, nil
	}
	return quietLog{logger}, nil
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return &config.Config{}, nil
	}
	return config.Load(configFile)
}
