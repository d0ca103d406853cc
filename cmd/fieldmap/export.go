package main

import (
	"github.com/spf13/cobra"

	"github.com/1F47E/fieldmap/pkg/export"
	"github.com/1F47E/fieldmap/pkg/postgis"
)

var exportPostGISCmd = &cobra.Command{
	Use:   "export-postgis <snapshot>",
	Short: "Push the unique items of a saved run into PostGIS",
	Long:  `Loads a snapshot written by reconstruct and inserts its unique items into the field_items table, using the postgis section of the config.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExportPostGIS,
}

var skipIndex bool

func init() {
	exportPostGISCmd.Flags().BoolVar(&skipIndex, "skip-index", false, "Don't create the spatial index after loading")
}

func runExportPostGIS(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := export.LoadSnapshot(args[0])
	if err != nil {
		return err
	}

	exp, err := postgis.NewExporter(log, postgis.Params{
		Host:     cfg.GetPostGISHost(),
		Port:     cfg.GetPostGISPort(),
		User:     cfg.GetPostGISUser(),
		Password: cfg.GetPostGISPassword(),
		Database: cfg.GetPostGISDatabase(),
		SRID:     cfg.GetPostGISSRID(),
	})
	if err != nil {
		return err
	}
	defer exp.Close()

	if err := exp.InitSchema(); err != nil {
		return err
	}
	if err := exp.ExportField(f); err != nil {
		return err
	}
	if !skipIndex {
		if err := exp.CreateSpatialIndex(); err != nil {
			return err
		}
	}
	count, err := exp.Count(f.RunID.String())
	if err != nil {
		return err
	}
	log.Infof("PostGIS holds %d items for run %s", count, f.RunID)
	return nil
}
