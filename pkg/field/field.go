// Package field runs the whole reconstruction: projection, duplicate merging,
// row assembly, segmentation, group stitching, validation and numbering.
package field

import (
	"fmt"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"

	"github.com/1F47E/fieldmap/pkg/config"
	"github.com/1F47E/fieldmap/pkg/ingest"
	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/projector"
	"github.com/1F47E/fieldmap/pkg/report"
	"github.com/1F47E/fieldmap/pkg/resolve"
	"github.com/1F47E/fieldmap/pkg/rows"
	"github.com/1F47E/fieldmap/pkg/segment"
	"github.com/1F47E/fieldmap/pkg/stitch"
	"github.com/1F47E/fieldmap/pkg/validate"
)

// Input is everything read from disk for one run
type Input struct {
	Images []*models.GeoImage
	// Detections in any order, not yet projected
	Detections []*models.FieldItem
	// ExpectedCounts maps group code names to the number of plants planted
	ExpectedCounts map[string]int
}

// Options are the tunables of a run
type Options struct {
	CameraRotation     float64
	MaxDistanceCm      float64
	Recluster          bool
	TiePolicy          resolve.TiePolicy
	Convention         rows.Convention
	LateralTolerance   float64
	PlantSpacing       float64
	LengthTolerance    float64
	PlaceMissingPlants bool
}

// OptionsFromConfig converts a loaded config to run options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CameraRotation: cfg.GetCameraRotation(),
		MaxDistanceCm:  cfg.GetMaxDistanceCm(),
		Recluster:      cfg.GetRecluster(),
		TiePolicy:      cfg.GetTiePolicy(),
		Convention: rows.Convention{
			FirstRow: cfg.GetFirstRow(),
			RowStep:  cfg.GetRowStep(),
			RowCount: cfg.GetRowCount(),
		},
		LateralTolerance:   cfg.GetLateralToleranceM(),
		PlantSpacing:       cfg.GetPlantSpacingM(),
		LengthTolerance:    cfg.GetLengthToleranceM(),
		PlaceMissingPlants: cfg.GetPlaceMissingPlants(),
	}
}

// Field is the reconstructed field model
type Field struct {
	RunID    uuid.UUID
	Registry *models.Registry
	// Canonical items in acquisition order
	Canonical []*models.FieldItem
	Rows      []*models.Row
	OpenRow   *models.Row
	Outside   []*models.FieldItem
	Groups    []*models.PlantGroup
	// Placed holds plants synthesized for segments without detected plants
	Placed    []*models.FieldItem
	Report    *report.Report
	Inventory validate.Inventory

	Demoted           int
	Flagged           int
	MaxCodeSeparation float64
}

// Reconstruct builds the field model. It returns an error only for
// structural problems that make the field impossible to name; data anomalies
// end up in the report.
func Reconstruct(log logs.Log, in Input, opt Options) (*Field, error) {
	f := &Field{
		RunID:    uuid.New(),
		Registry: models.NewRegistry(),
		Report:   &report.Report{},
	}
	rep := f.Report

	stream, err := ingest.Stream(in.Images, in.Detections, opt.CameraRotation)
	if err != nil {
		return nil, fmt.Errorf("ordering detections: %w", err)
	}
	projected := projector.ProjectItems(log, stream, ingest.ImageIndex(in.Images), rep)
	for _, item := range projected {
		f.Registry.Add(item)
	}
	log.Infof("Projected %d of %d detections", len(projected), len(in.Detections))

	f.Canonical, err = resolve.MergeItems(projected, opt.MaxDistanceCm)
	if err != nil {
		return nil, fmt.Errorf("merging items: %w", err)
	}
	if opt.Recluster {
		f.Canonical, f.Demoted = resolve.ClusterMergedItems(f.Registry, f.Canonical, opt.MaxDistanceCm, opt.TiePolicy)
	}
	f.MaxCodeSeparation = resolve.MaxSeparation(f.Registry, f.Canonical, models.KindGroupCode, models.KindRowCode)
	log.Infof("Merged into %d unique items (%d demoted by re-clustering), max code separation %.2f m",
		len(f.Canonical), f.Demoted, f.MaxCodeSeparation)

	assembled := rows.Assemble(log, f.Canonical, rep)
	f.Rows, f.OpenRow, f.Outside = assembled.Rows, assembled.OpenRow, assembled.Outside
	rows.AssignDirections(log, f.Rows, opt.Convention, rep)
	log.Infof("Assembled %d rows", len(f.Rows))

	segment.Build(log, f.Rows, groupCodes(f.Canonical), opt.LateralTolerance, rep)

	f.Groups, err = stitch.Stitch(log, f.Rows, opt.Convention.FirstRow, rep)
	if err != nil {
		return nil, fmt.Errorf("stitching groups: %w", err)
	}
	log.Infof("Stitched %d plant groups", len(f.Groups))

	f.Flagged = validate.CheckGroups(log, f.Groups, validate.Params{
		PlantSpacing:   opt.PlantSpacing,
		Tolerance:      opt.LengthTolerance,
		ExpectedCounts: in.ExpectedCounts,
	})
	if opt.PlaceMissingPlants {
		f.placePlants(log)
	}

	validate.NumberRows(f.Rows, validate.NewCounter(1))
	f.Inventory = validate.TakeInventory(f.Canonical, in.ExpectedCounts)
	log.Infof("Inventory: %v", f.Inventory)
	return f, nil
}

func groupCodes(items []*models.FieldItem) []*models.FieldItem {
	var codes []*models.FieldItem
	for _, item := range items {
		if item.Kind == models.KindGroupCode {
			codes = append(codes, item)
		}
	}
	return codes
}

// placePlants fills segments that have an expected count but no detected
// plants with evenly spaced synthetic plants.
func (f *Field) placePlants(log logs.Log) {
	for _, g := range f.Groups {
		if g.ExpectedCount <= 0 {
			continue
		}
		counts := validate.SplitCount(g, g.ExpectedCount)
		for i, s := range g.Segments {
			if hasPlants(s) {
				continue
			}
			plants, err := validate.PlacePlants(s, counts[i])
			if err != nil {
				log.Warnf("%v", err)
				continue
			}
			for _, p := range plants {
				f.Registry.Add(p)
			}
			s.Items = append(s.Items, plants...)
			f.Placed = append(f.Placed, plants...)
		}
	}
	if len(f.Placed) > 0 {
		log.Infof("Placed %d plants in segments without detections", len(f.Placed))
	}
}

func hasPlants(s *models.Segment) bool {
	for _, item := range s.Items {
		if item.Kind == models.KindPlant {
			return true
		}
	}
	return false
}
