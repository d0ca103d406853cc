// Package export writes a reconstructed field to CSV files, a SQLite database
// and a binary snapshot that can be reloaded later.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/1F47E/fieldmap/pkg/field"
	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/validate"
)

var csvHeader = []string{
	"number_within_field", "number_within_row", "row", "group", "kind", "name",
	"x", "y", "z", "width", "height", "area", "image", "id", "canonical_id",
}

// Numbered returns the numbered items of every row sorted by field number
func Numbered(f *field.Field) []*models.FieldItem {
	var items []*models.FieldItem
	for _, row := range f.Rows {
		items = append(items, validate.RowSequence(row)...)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].NumberWithinField < items[j].NumberWithinField })
	return items
}

// WriteAll writes every numbered item followed by each of its duplicates
func WriteAll(w io.Writer, f *field.Field) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, item := range Numbered(f) {
		for _, inst := range f.Registry.Instances(item) {
			if err := cw.Write(record(item, inst, inst.Position, inst.Size, inst.Area)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Averaged is a numbered item with position, size and area averaged over all
// of its instances
type Averaged struct {
	Item     *models.FieldItem
	Position models.Vec3
	Size     [2]float64
	Area     float64
}

// Average folds the instances of an item into their mean
func Average(reg *models.Registry, item *models.FieldItem) Averaged {
	instances := reg.Instances(item)
	n := len(instances)
	xs, ys, zs := make([]float64, n), make([]float64, n), make([]float64, n)
	ws, hs, as := make([]float64, n), make([]float64, n), make([]float64, n)
	for i, inst := range instances {
		xs[i], ys[i], zs[i] = inst.Position.X, inst.Position.Y, inst.Position.Z
		ws[i], hs[i], as[i] = inst.Size[0], inst.Size[1], inst.Area
	}
	return Averaged{
		Item:     item,
		Position: models.Vec3{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil), Z: stat.Mean(zs, nil)},
		Size:     [2]float64{stat.Mean(ws, nil), stat.Mean(hs, nil)},
		Area:     stat.Mean(as, nil),
	}
}

// WriteAveraged writes one line per numbered item with averaged measurements.
// The items themselves are not modified.
func WriteAveraged(w io.Writer, f *field.Field) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, item := range Numbered(f) {
		avg := Average(f.Registry, item)
		if err := cw.Write(record(item, item, avg.Position, avg.Size, avg.Area)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(canonical, inst *models.FieldItem, pos models.Vec3, size [2]float64, area float64) []string {
	return []string{
		strconv.Itoa(canonical.NumberWithinField),
		strconv.Itoa(canonical.NumberWithinRow),
		strconv.Itoa(canonical.Row),
		strconv.Itoa(int(canonical.Group)),
		inst.Kind.String(),
		inst.Name,
		formatFloat(pos.X),
		formatFloat(pos.Y),
		formatFloat(pos.Z),
		formatFloat(size[0]),
		formatFloat(size[1]),
		formatFloat(area),
		inst.ImageFile,
		strconv.Itoa(int(inst.ID)),
		strconv.Itoa(int(canonical.ID)),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// WriteCSVFiles writes results_all.csv and results_averaged.csv into dir
func WriteCSVFiles(dir string, f *field.Field) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	outputs := []struct {
		name  string
		write func(io.Writer, *field.Field) error
	}{
		{"results_all.csv", WriteAll},
		{"results_averaged.csv", WriteAveraged},
	}
	var paths []string
	for _, o := range outputs {
		path := filepath.Join(dir, o.name)
		if err := writeFile(path, func(w io.Writer) error { return o.write(w, f) }); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := fn(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
