// Package resolve decides which detections refer to the same physical item and
// folds duplicates into one canonical record.
//
// Matching is greedy and order dependent: items are visited in input order and
// each joins the first canonical item it matches. Two nearly equidistant
// candidates are not disambiguated.
package resolve

import (
	"fmt"
	"math"

	"github.com/1F47E/fieldmap/pkg/geo"
	"github.com/1F47E/fieldmap/pkg/models"
)

// MinCodeDistanceCm is the smallest match radius used for codes with equal names
const MinCodeDistanceCm = 30.0

// Threshold returns the match radius in meters for items of the given kind
func Threshold(kind models.ItemKind, maxDistanceCm float64) float64 {
	d := maxDistanceCm
	if kind.IsCode() {
		d = math.Max(d, MinCodeDistanceCm)
	}
	return d / 100.0
}

// IsSame reports whether a and b are detections of the same physical item
func IsSame(a, b *models.FieldItem, maxDistanceCm float64) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.ImageFile == b.ImageFile {
		return false
	}
	if a.Kind.IsCode() && a.Name != b.Name {
		return false
	}
	return models.PlanarDistance(a.Position, b.Position) <= Threshold(a.Kind, maxDistanceCm)
}

// Cluster is one physical item: the index of its canonical detection and the
// indices of the detections folded into it, all in input order.
type Cluster struct {
	Canonical  int
	Duplicates []int
}

// Partition assigns every input index to exactly one cluster. It has no side
// effects on the items.
func Partition(items []*models.FieldItem, maxDistanceCm float64) ([]Cluster, error) {
	index := geo.NewItemIndex()
	var clusters []Cluster

	for i, item := range items {
		candidates, err := index.Within(item.Position.X, item.Position.Y, Threshold(item.Kind, maxDistanceCm))
		if err != nil {
			return nil, fmt.Errorf("searching candidates for %v: %w", item, err)
		}
		match := -1
		for _, c := range candidates {
			if IsSame(item, index.Item(c), maxDistanceCm) {
				match = c
				break
			}
		}
		if match < 0 {
			index.Insert(item)
			clusters = append(clusters, Cluster{Canonical: i})
			continue
		}
		clusters[match].Duplicates = append(clusters[match].Duplicates, i)
	}
	return clusters, nil
}

// MergeItems returns the canonical items of the input, each referencing its
// duplicates through OtherItems. Duplicates already attached to an input item
// are carried along, so running MergeItems on its own output changes nothing.
func MergeItems(items []*models.FieldItem, maxDistanceCm float64) ([]*models.FieldItem, error) {
	clusters, err := Partition(items, maxDistanceCm)
	if err != nil {
		return nil, err
	}
	out := make([]*models.FieldItem, 0, len(clusters))
	for _, c := range clusters {
		canonical := items[c.Canonical]
		for _, d := range c.Duplicates {
			dup := items[d]
			canonical.OtherItems = append(canonical.OtherItems, dup.ID)
			canonical.OtherItems = append(canonical.OtherItems, dup.OtherItems...)
			dup.OtherItems = nil
		}
		out = append(out, canonical)
	}
	return out, nil
}

// MaxSeparation returns the largest planar distance between any two instances
// of the same canonical item, over all items of the given kinds.
func MaxSeparation(reg *models.Registry, canonical []*models.FieldItem, kinds ...models.ItemKind) float64 {
	largest := 0.0
	for _, item := range canonical {
		if len(kinds) > 0 && !hasKind(kinds, item.Kind) {
			continue
		}
		instances := reg.Instances(item)
		for i := 0; i < len(instances); i++ {
			for j := i + 1; j < len(instances); j++ {
				largest = math.Max(largest, models.PlanarDistance(instances[i].Position, instances[j].Position))
			}
		}
	}
	return largest
}

func hasKind(kinds []models.ItemKind, k models.ItemKind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}
