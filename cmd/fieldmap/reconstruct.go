package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/1F47E/fieldmap/pkg/config"
	"github.com/1F47E/fieldmap/pkg/export"
	"github.com/1F47E/fieldmap/pkg/field"
	"github.com/1F47E/fieldmap/pkg/ingest"
)

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct",
	Short: "Build the field model from geo, detection and group files",
	Long: `Reads the image geo file, the detections file and the group info file, runs the
reconstruction and writes CSV results, a SQLite database and a snapshot.`,
	RunE: runReconstruct,
}

var (
	geoFile        string
	detectionsFile string
	groupsFile     string
	outputDir      string
	maxDistanceCm  float64
	tiePolicy      string
	firstRow       int
	rowStep        int
)

func init() {
	reconstructCmd.Flags().StringVarP(&geoFile, "geo", "g", "", "Image geo file (time,name,x,y,z,roll,pitch,heading)")
	reconstructCmd.Flags().StringVarP(&detectionsFile, "detections", "d", "", "Detections file (image,kind,name,x,y,w,h)")
	reconstructCmd.Flags().StringVarP(&groupsFile, "groups", "G", "", "Group info file (name,count)")
	reconstructCmd.Flags().StringVarP(&outputDir, "out", "o", "", "Output directory (overrides config)")
	reconstructCmd.Flags().Float64Var(&maxDistanceCm, "max-distance", config.DefaultMaxDistanceCm, "Max distance in cm between detections of one item")
	reconstructCmd.Flags().StringVar(&tiePolicy, "tie-policy", "keep-all", "Re-clustering tie policy (keep-all, keep-canonical)")
	reconstructCmd.Flags().IntVar(&firstRow, "first-row", config.DefaultFirstRow, "Number of the first row driven up the field")
	reconstructCmd.Flags().IntVar(&rowStep, "row-step", config.DefaultRowStep, "Rows skipped at every turnaround")

	reconstructCmd.MarkFlagRequired("geo")
	reconstructCmd.MarkFlagRequired("detections")
	reconstructCmd.MarkFlagRequired("groups")
}

// applyFlags lets explicitly set flags override the config file
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.SetOutputDir(outputDir)
	}
	if flags.Changed("max-distance") {
		cfg.SetMaxDistanceCm(maxDistanceCm)
	}
	if flags.Changed("tie-policy") {
		cfg.SetTiePolicy(tiePolicy)
	}
	if flags.Changed("first-row") {
		cfg.SetFirstRow(firstRow)
	}
	if flags.Changed("row-step") {
		cfg.SetRowStep(rowStep)
	}
	return cfg.Validate()
}

func runReconstruct(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	images, skipped, err := ingest.ReadGeoFile(log, geoFile, cfg.GetCamera())
	if err != nil {
		return err
	}
	log.Infof("Parsed %d geo images, skipped %d bad lines", len(images), skipped)

	detections, err := ingest.ReadDetectionsFile(detectionsFile)
	if err != nil {
		return err
	}
	counts, err := ingest.ReadGroupInfoFile(groupsFile)
	if err != nil {
		return err
	}
	log.Infof("Parsed %d detections and %d groups", len(detections), len(counts))

	start := time.Now()
	f, err := field.Reconstruct(log, field.Input{
		Images:         images,
		Detections:     detections,
		ExpectedCounts: counts,
	}, field.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	dir := cfg.GetOutputDir()
	paths, err := export.WriteCSVFiles(dir, f)
	if err != nil {
		return err
	}
	snapshot := filepath.Join(dir, "field.gob")
	if err := export.SaveSnapshot(snapshot, f); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	paths = append(paths, snapshot)

	if cfg.GetSQLite() {
		dbPath := filepath.Join(dir, "field.sqlite")
		store, err := export.NewSQLiteStore(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", dbPath, err)
		}
		defer store.Close()
		if err := store.SaveField(f); err != nil {
			return err
		}
		paths = append(paths, dbPath)
	}

	fmt.Printf("Run %s reconstructed in %v\n", f.RunID, elapsed)
	fmt.Printf("Unique items: %d of %d registered\n", len(f.Canonical), f.Registry.Len())
	fmt.Printf("Rows: %d, plant groups: %d, flagged groups: %d\n", len(f.Rows), len(f.Groups), f.Flagged)
	fmt.Printf("Anomalies: %d\n", len(f.Report.Anomalies))
	fmt.Printf("Inventory: %v\n", f.Inventory)
	for _, p := range paths {
		fmt.Printf("Wrote %s\n", p)
	}
	return nil
}
