package ingest

import (
	"fmt"
	"sort"

	"github.com/1F47E/fieldmap/pkg/models"
)

// OrderInImage sorts the detections of one image from the back of the vehicle
// to the front. Camera rotation 0 means the image top faces forward, and the
// angle increases counter-clockwise.
func OrderInImage(items []*models.FieldItem, rotationDegrees float64) error {
	var less func(a, b *models.FieldItem) bool
	switch rotationDegrees {
	case 0: // bottom to top
		less = func(a, b *models.FieldItem) bool { return centerY(a) > centerY(b) }
	case 180: // top to bottom
		less = func(a, b *models.FieldItem) bool { return centerY(a) < centerY(b) }
	case 90: // left to right
		less = func(a, b *models.FieldItem) bool { return centerX(a) < centerX(b) }
	case 270: // right to left
		less = func(a, b *models.FieldItem) bool { return centerX(a) > centerX(b) }
	default:
		return fmt.Errorf("camera rotation %v invalid, choices are 0, 90, 180, 270", rotationDegrees)
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	return nil
}

func centerX(item *models.FieldItem) float64 {
	x, _ := item.Box.Center()
	return x
}

func centerY(item *models.FieldItem) float64 {
	_, y := item.Box.Center()
	return y
}

// Stream returns the detections in acquisition order: images by capture time,
// then detections inside each image by OrderInImage. Detections of images
// missing from the geo file follow at the end in input order.
func Stream(images []*models.GeoImage, items []*models.FieldItem, rotationDegrees float64) ([]*models.FieldItem, error) {
	byImage := map[string][]*models.FieldItem{}
	for _, item := range items {
		byImage[item.ImageFile] = append(byImage[item.ImageFile], item)
	}

	sorted := append([]*models.GeoImage(nil), images...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	out := make([]*models.FieldItem, 0, len(items))
	seen := map[string]bool{}
	for _, img := range sorted {
		if seen[img.FileName] {
			continue
		}
		seen[img.FileName] = true
		group := byImage[img.FileName]
		if err := OrderInImage(group, rotationDegrees); err != nil {
			return nil, err
		}
		out = append(out, group...)
	}
	for _, item := range items {
		if !seen[item.ImageFile] {
			out = append(out, item)
		}
	}
	return out, nil
}

// ImageIndex maps file names to images
func ImageIndex(images []*models.GeoImage) map[string]*models.GeoImage {
	out := make(map[string]*models.GeoImage, len(images))
	for _, img := range images {
		out[img.FileName] = img
	}
	return out
}
