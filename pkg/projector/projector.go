// Package projector maps detection footprints inside an image to world positions.
package projector

import (
	"fmt"
	"math"

	"github.com/cyclopcam/logs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/1F47E/fieldmap/pkg/models"
	"github.com/1F47E/fieldmap/pkg/report"
)

// The locator reports positions with the top of the image as forward, while
// heading 0 points east.
const locatorOffsetDegrees = -90.0

// Project returns the world position of a pixel coordinate in the image.
// The image must have a positive resolution.
func Project(px, py float64, img *models.GeoImage) (models.Vec3, error) {
	res := img.Resolution()
	if res <= 0 {
		return models.Vec3{}, fmt.Errorf("image %s has no usable resolution", img.FileName)
	}

	// Pixel y grows downward; flip it so +y is image-forward.
	centered := r2.Vec{
		X: px - float64(img.Width)/2,
		Y: float64(img.Height)/2 - py,
	}

	angle := (img.HeadingDegrees + img.CameraRotationDegrees + locatorOffsetDegrees) * math.Pi / 180
	rotated := r2.Rotate(centered, angle, r2.Vec{})
	offset := r2.Scale(res/100.0, rotated)

	return models.Vec3{
		X: img.Position.X + offset.X,
		Y: img.Position.Y + offset.Y,
		Z: img.Position.Z - img.CameraHeight/100.0,
	}, nil
}

// ProjectItem sets the item's world position from the center of its bounding box
func ProjectItem(item *models.FieldItem, img *models.GeoImage) error {
	cx, cy := item.Box.Center()
	pos, err := Project(cx, cy, img)
	if err != nil {
		return err
	}
	item.Position = pos
	res := img.Resolution()
	item.Size = [2]float64{item.Box.Width * res, item.Box.Height * res}
	if item.Area == 0 {
		item.Area = item.Size[0] * item.Size[1]
	}
	return nil
}

// ProjectItems projects every item through the image it was found in.
// Items whose image is unknown or has no resolution are dropped and reported;
// each bad image is reported once.
func ProjectItems(log logs.Log, items []*models.FieldItem, images map[string]*models.GeoImage, rep *report.Report) []*models.FieldItem {
	skipped := map[string]bool{}
	out := make([]*models.FieldItem, 0, len(items))
	for _, item := range items {
		img := images[item.ImageFile]
		if img == nil || img.Resolution() <= 0 {
			if !skipped[item.ImageFile] {
				skipped[item.ImageFile] = true
				a := rep.Add(report.SkippedImage, nil, 0, "cannot compute resolution for image %q, skipping", item.ImageFile)
				log.Warnf("%v", a)
			}
			continue
		}
		if err := ProjectItem(item, img); err != nil {
			log.Warnf("Projecting %v: %v", item, err)
			continue
		}
		out = append(out, item)
	}
	return out
}
