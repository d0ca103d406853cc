package resolve

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/1F47E/fieldmap/pkg/models"
)

// TiePolicy decides what happens when the duplicates of a canonical item split
// into several equally large clusters.
type TiePolicy int

const (
	// TieKeepAll leaves every tied cluster merged. This can silently combine
	// two distinct physical items.
	TieKeepAll TiePolicy = iota
	// TieKeepCanonical keeps the tied cluster nearest to the canonical
	// detection and demotes the rest.
	TieKeepCanonical
)

func (p TiePolicy) String() string {
	if p == TieKeepCanonical {
		return "keep-canonical"
	}
	return "keep-all"
}

// ClusterMergedItems re-clusters the duplicates of every canonical item by
// mutual distance. The canonical detection itself takes no part in the linkage:
// every duplicate is within the threshold of it, so it would join all clusters
// into one. The largest cluster stays merged with the canonical and every other
// cluster is demoted to a canonical item of its own, placed right after the
// item it was split from. It returns the new canonical list and the number of
// demotions.
func ClusterMergedItems(reg *models.Registry, canonical []*models.FieldItem, maxDistanceCm float64, policy TiePolicy) ([]*models.FieldItem, int) {
	out := make([]*models.FieldItem, 0, len(canonical))
	demoted := 0
	for _, item := range canonical {
		dups := reg.Instances(item)[1:]
		if len(dups) < 2 {
			out = append(out, item)
			continue
		}
		parts := duplicateClusters(dups, Threshold(item.Kind, maxDistanceCm))
		keep, ok := pickCluster(item, dups, parts, policy)
		if !ok {
			out = append(out, item)
			continue
		}

		item.OtherItems = item.OtherItems[:0]
		for _, idx := range parts[keep] {
			item.OtherItems = append(item.OtherItems, dups[idx].ID)
		}
		out = append(out, item)
		for i, part := range parts {
			if i == keep {
				continue
			}
			members := make([]*models.FieldItem, len(part))
			for j, idx := range part {
				members[j] = dups[idx]
			}
			out = append(out, relink(members))
			demoted++
		}
	}
	return out, demoted
}

// duplicateClusters returns connected components of the "within threshold"
// graph over the duplicates, as sorted index lists ordered by first member.
func duplicateClusters(dups []*models.FieldItem, threshold float64) [][]int {
	g := simple.NewUndirectedGraph()
	for i := range dups {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < len(dups); i++ {
		for j := i + 1; j < len(dups); j++ {
			if models.PlanarDistance(dups[i].Position, dups[j].Position) <= threshold {
				g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(j)})
			}
		}
	}

	var parts [][]int
	for _, component := range topo.ConnectedComponents(g) {
		parts = append(parts, nodeIndices(component))
	}
	sort.Slice(parts, func(a, b int) bool { return parts[a][0] < parts[b][0] })
	return parts
}

func nodeIndices(nodes []graph.Node) []int {
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = int(n.ID())
	}
	sort.Ints(out)
	return out
}

// pickCluster returns the index of the cluster that stays merged with item.
// ok is false when nothing should change.
func pickCluster(item *models.FieldItem, dups []*models.FieldItem, parts [][]int, policy TiePolicy) (int, bool) {
	if len(parts) < 2 {
		return 0, false
	}
	largest := 0
	for _, p := range parts {
		if len(p) > largest {
			largest = len(p)
		}
	}
	var tied []int
	for i, p := range parts {
		if len(p) == largest {
			tied = append(tied, i)
		}
	}
	if len(tied) == 1 {
		return tied[0], true
	}
	if policy == TieKeepAll {
		return 0, false
	}
	// equal distances fall back to the cluster seen first
	best, bestDist := tied[0], math.Inf(1)
	for _, i := range tied {
		if d := meanDistance(item, dups, parts[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, true
}

func meanDistance(item *models.FieldItem, dups []*models.FieldItem, part []int) float64 {
	sum := 0.0
	for _, idx := range part {
		sum += models.PlanarDistance(item.Position, dups[idx].Position)
	}
	return sum / float64(len(part))
}

// relink makes members[0] the canonical of the cluster and returns it
func relink(members []*models.FieldItem) *models.FieldItem {
	head := members[0]
	ids := make([]models.ItemID, 0, len(members)-1)
	for _, m := range members[1:] {
		m.OtherItems = nil
		ids = append(ids, m.ID)
	}
	head.OtherItems = ids
	return head
}
