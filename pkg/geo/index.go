// Package geo provides an R-Tree backed planar index of field items used to
// find merge candidates without scanning every canonical item.
package geo

import (
	"fmt"
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/1F47E/fieldmap/pkg/models"
)

const (
	tolerance   = 1e-6
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	// smallest side of a search box, keeps rtreego from rejecting zero radii
	minSearchSide = 1e-9
)

// entry wraps an item position for R-Tree indexing
type entry struct {
	order int
	item  *models.FieldItem
	rect  *rtreego.Rect
}

func (e *entry) Bounds() *rtreego.Rect {
	return e.rect
}

// ItemIndex indexes items by planar position. Each item keeps the order in
// which it was inserted so that searches can reproduce a first-seen scan.
type ItemIndex struct {
	tree    *rtreego.Rtree
	entries []*entry
}

// NewItemIndex creates an empty index
func NewItemIndex() *ItemIndex {
	return &ItemIndex{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
}

// Insert adds an item and returns its insertion order
func (g *ItemIndex) Insert(item *models.FieldItem) int {
	p := rtreego.Point{item.Position.X, item.Position.Y}
	e := &entry{
		order: len(g.entries),
		item:  item,
		rect:  p.ToRect(tolerance),
	}
	g.entries = append(g.entries, e)
	g.tree.Insert(e)
	return e.order
}

// Within returns the insertion orders of all items whose planar distance to
// (x, y) is at most radius, in ascending insertion order.
func (g *ItemIndex) Within(x, y, radius float64) ([]int, error) {
	side := math.Max(2*radius, minSearchSide)
	bounds, err := rtreego.NewRect(rtreego.Point{x - side/2, y - side/2}, []float64{side, side})
	if err != nil {
		return nil, fmt.Errorf("invalid radius search: %w", err)
	}

	results := g.tree.SearchIntersect(bounds)
	orders := make([]int, 0, len(results))
	for _, result := range results {
		e, ok := result.(*entry)
		if !ok {
			continue
		}
		if math.Hypot(e.item.Position.X-x, e.item.Position.Y-y) <= radius {
			orders = append(orders, e.order)
		}
	}
	sort.Ints(orders)
	return orders, nil
}

// Item returns the item with the given insertion order
func (g *ItemIndex) Item(order int) *models.FieldItem {
	return g.entries[order].item
}

// Items returns the indexed items in insertion order
func (g *ItemIndex) Items() []*models.FieldItem {
	out := make([]*models.FieldItem, len(g.entries))
	for i, e := range g.entries {
		out[i] = e.item
	}
	return out
}

// Size returns the number of indexed items
func (g *ItemIndex) Size() int {
	return len(g.entries)
}
